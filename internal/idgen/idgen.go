package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("idgen",
	fx.Provide(NewNode),
)

// NewNode returns the snowflake generator for this replica. Replicas sharing
// a database need distinct SNOWFLAKE_NODE_ID values.
func NewNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
