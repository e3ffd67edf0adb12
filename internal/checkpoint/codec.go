// Package checkpoint implements the client-held access snapshot: a small set
// of individually signed flags the routing edge can trust without a database
// round trip. Flags are conservative by construction. A missing, tampered or
// expired flag is simply absent, and the caller falls back to the durable
// store.
package checkpoint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"studyhall-platform/internal/subscription"
)

// ErrSecretUnset is returned when the codec is constructed without a signing
// secret in production. An empty key would let any client forge flags.
var ErrSecretUnset = errors.New("checkpoint signing secret is not configured")

// Flag cookie names
const (
	FlagAccess    = "shp_access"     // state:tier, volatile
	FlagTrialDays = "shp_trial_days" // remaining whole trial days, volatile
	FlagOnboarded = "shp_onboarded"  // onboarding done, stable
	FlagEpoch     = "shp_epoch"      // per-user invalidation counter, volatile
)

// FlagNames lists every checkpoint cookie name
func FlagNames() []string {
	return []string{FlagAccess, FlagTrialDays, FlagOnboarded, FlagEpoch}
}

const codecVersion = "v1"

// Set is the flag payload computed from durable state
type Set struct {
	State              subscription.State
	Tier               subscription.Tier
	RemainingTrialDays int
	Onboarded          bool
	Epoch              int64
}

// Decoded is the verified view of a client-held checkpoint. Has* fields
// report flag presence; absent flags carry zero values and must not be
// trusted.
type Decoded struct {
	HasAccess          bool
	State              subscription.State
	Tier               subscription.Tier
	RemainingTrialDays int
	HasOnboarded       bool
	Onboarded          bool
	HasEpoch           bool
	Epoch              int64
}

// SignedFlag is one encoded flag ready to be written as a cookie
type SignedFlag struct {
	Name   string
	Value  string
	MaxAge int // Seconds
}

// Codec signs and verifies individual flags. Each flag carries its own
// expiry inside the signed payload, so a client cannot stretch a flag's
// lifetime by editing cookie attributes.
type Codec struct {
	secret      []byte
	volatileTTL time.Duration
	stableTTL   time.Duration
}

// NewCodec creates a checkpoint codec. production controls the missing
// secret policy: an unset secret is refused in production and tolerated in
// development so local runs work without generated keys.
func NewCodec(secret string, volatileTTL, stableTTL time.Duration, production bool) (*Codec, error) {
	if secret == "" && production {
		return nil, ErrSecretUnset
	}
	if volatileTTL <= 0 {
		volatileTTL = 24 * time.Hour
	}
	if stableTTL <= 0 {
		stableTTL = 365 * 24 * time.Hour
	}
	return &Codec{
		secret:      []byte(secret),
		volatileTTL: volatileTTL,
		stableTTL:   stableTTL,
	}, nil
}

// SignFlag produces the wire form of one flag: version|value|expiry|signature
func (c *Codec) SignFlag(name, value string, expires time.Time) string {
	exp := strconv.FormatInt(expires.Unix(), 10)
	sig := c.sign(name, value, exp)
	return strings.Join([]string{codecVersion, value, exp, sig}, "|")
}

// VerifyFlag checks a wire-form flag and returns its value. Any structural
// problem, bad signature or passed expiry makes the flag absent.
func (c *Codec) VerifyFlag(name, encoded string, now time.Time) (string, bool) {
	parts := strings.Split(encoded, "|")
	if len(parts) != 4 || parts[0] != codecVersion {
		return "", false
	}
	value, exp, sig := parts[1], parts[2], parts[3]

	expected := c.sign(name, value, exp)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || now.Unix() >= expUnix {
		return "", false
	}

	return value, true
}

// Encode turns a flag set into signed cookies
func (c *Codec) Encode(set Set, now time.Time) []SignedFlag {
	volatileExp := now.Add(c.volatileTTL)
	stableExp := now.Add(c.stableTTL)

	flags := []SignedFlag{
		{
			Name:   FlagAccess,
			Value:  c.SignFlag(FlagAccess, string(set.State)+":"+string(set.Tier), volatileExp),
			MaxAge: int(c.volatileTTL.Seconds()),
		},
		{
			Name:   FlagEpoch,
			Value:  c.SignFlag(FlagEpoch, strconv.FormatInt(set.Epoch, 10), volatileExp),
			MaxAge: int(c.volatileTTL.Seconds()),
		},
		{
			Name:   FlagOnboarded,
			Value:  c.SignFlag(FlagOnboarded, strconv.FormatBool(set.Onboarded), stableExp),
			MaxAge: int(c.stableTTL.Seconds()),
		},
	}

	if set.State == subscription.StateTrial {
		flags = append(flags, SignedFlag{
			Name:   FlagTrialDays,
			Value:  c.SignFlag(FlagTrialDays, strconv.Itoa(set.RemainingTrialDays), volatileExp),
			MaxAge: int(c.volatileTTL.Seconds()),
		})
	}

	return flags
}

// Decode verifies whatever flags the client presented. lookup returns the raw
// cookie value for a flag name, or false when the cookie is missing.
func (c *Codec) Decode(lookup func(name string) (string, bool), now time.Time) Decoded {
	var d Decoded

	if raw, ok := lookup(FlagAccess); ok {
		if value, ok := c.VerifyFlag(FlagAccess, raw, now); ok {
			if state, tier, err := splitAccessValue(value); err == nil {
				d.HasAccess = true
				d.State = state
				d.Tier = tier
			}
		}
	}

	if raw, ok := lookup(FlagTrialDays); ok {
		if value, ok := c.VerifyFlag(FlagTrialDays, raw, now); ok {
			if days, err := strconv.Atoi(value); err == nil && days >= 0 {
				d.RemainingTrialDays = days
			}
		}
	}

	if raw, ok := lookup(FlagOnboarded); ok {
		if value, ok := c.VerifyFlag(FlagOnboarded, raw, now); ok {
			d.HasOnboarded = true
			d.Onboarded = value == "true"
		}
	}

	if raw, ok := lookup(FlagEpoch); ok {
		if value, ok := c.VerifyFlag(FlagEpoch, raw, now); ok {
			if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
				d.HasEpoch = true
				d.Epoch = epoch
			}
		}
	}

	return d
}

func (c *Codec) sign(name, value, exp string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(name))
	mac.Write([]byte{'|'})
	mac.Write([]byte(value))
	mac.Write([]byte{'|'})
	mac.Write([]byte(exp))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func splitAccessValue(value string) (subscription.State, subscription.Tier, error) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return "", "", fmt.Errorf("malformed access flag")
	}
	state := subscription.State(value[:idx])
	tier := subscription.Tier(value[idx+1:])

	switch tier {
	case subscription.TierFull, subscription.TierReadOnly, subscription.TierDenied:
	default:
		return "", "", fmt.Errorf("unknown tier %q", tier)
	}

	return state, tier, nil
}
