package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RentPolicy carries landlord-level settings that can change without a restart.
type RentPolicy struct {
	Currency     string        `mapstructure:"currency"`
	Timezone     string        `mapstructure:"timezone"`
	AgingBuckets []AgingBucket `mapstructure:"agingBuckets"`
}

// AgingBucket groups outstanding rent by days past the period start. A nil
// MaxDays means the bucket is open ended.
type AgingBucket struct {
	Label   string `mapstructure:"label" json:"label"`
	MinDays int    `mapstructure:"minDays" json:"min_days"`
	MaxDays *int   `mapstructure:"maxDays" json:"max_days,omitempty"`
}

func DefaultRentPolicy() RentPolicy {
	return RentPolicy{
		Currency: "INR",
		Timezone: "UTC",
		AgingBuckets: []AgingBucket{
			{Label: "0-30", MinDays: 0, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "61-90", MinDays: 61, MaxDays: intPtr(90)},
			{Label: "90+", MinDays: 91, MaxDays: nil},
		},
	}
}

// Location resolves the policy timezone, falling back to UTC.
func (p RentPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil || strings.TrimSpace(p.Timezone) == "" {
		return time.UTC
	}
	return loc
}

func intPtr(v int) *int { return &v }

type RentPolicyHolder struct {
	current atomic.Value // holds RentPolicy
}

func NewRentPolicyHolder() (*RentPolicyHolder, error) {
	return loadRentPolicy("/etc/rentbook", ".")
}

// NewStaticRentPolicyHolder returns a holder that never reloads.
func NewStaticRentPolicyHolder(policy RentPolicy) *RentPolicyHolder {
	holder := &RentPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func loadRentPolicy(paths ...string) (*RentPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("rent")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("RENTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return NewStaticRentPolicyHolder(DefaultRentPolicy()), nil
	}

	policy, err := decodeRentPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRentPolicyHolder(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRentPolicy(v)
		if err != nil {
			zap.L().Warn("rent policy reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("rent policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func decodeRentPolicy(v *viper.Viper) (RentPolicy, error) {
	var policy RentPolicy
	if err := v.UnmarshalKey("rent", &policy); err != nil {
		return RentPolicy{}, err
	}
	defaults := DefaultRentPolicy()
	if strings.TrimSpace(policy.Currency) == "" {
		policy.Currency = defaults.Currency
	}
	if strings.TrimSpace(policy.Timezone) == "" {
		policy.Timezone = defaults.Timezone
	}
	if len(policy.AgingBuckets) == 0 {
		policy.AgingBuckets = defaults.AgingBuckets
	}
	if err := validateRentPolicy(policy); err != nil {
		return RentPolicy{}, err
	}
	return policy, nil
}

func (h *RentPolicyHolder) Get() RentPolicy {
	return h.current.Load().(RentPolicy)
}

func validateRentPolicy(p RentPolicy) error {
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("rent.currency cannot be empty")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(p.Timezone)); err != nil {
		return fmt.Errorf("rent.timezone: %w", err)
	}
	if len(p.AgingBuckets) == 0 {
		return errors.New("rent.agingBuckets cannot be empty")
	}
	for i, bucket := range p.AgingBuckets {
		if strings.TrimSpace(bucket.Label) == "" {
			return fmt.Errorf("rent.agingBuckets[%d].label cannot be empty", i)
		}
		if bucket.MinDays < 0 {
			return fmt.Errorf("rent.agingBuckets[%d].minDays must not be negative", i)
		}
		if bucket.MaxDays != nil && *bucket.MaxDays < bucket.MinDays {
			return fmt.Errorf("rent.agingBuckets[%d].maxDays is below minDays", i)
		}
	}
	return nil
}
