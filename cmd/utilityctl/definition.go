package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"utilitychain/core/events"
	"utilitychain/crypto"
	"utilitychain/native/utility"
)

// utilityDefinition is the YAML form of a utility template accepted by
// the create command.
type utilityDefinition struct {
	Partner     string `yaml:"partner"`
	URI         string `yaml:"uri"`
	Expiry      uint64 `yaml:"expiry"`
	OfferExpiry uint64 `yaml:"offerExpiry"`
	Usage       uint64 `yaml:"usage"`
	ExpiryType  string `yaml:"expiryType"`
	UsageType   string `yaml:"usageType"`
	Selection   string `yaml:"selection"`
	Raffle      struct {
		StartTime uint64 `yaml:"startTime"`
	} `yaml:"raffle"`
	Reward struct {
		Receipt      string   `yaml:"receipt"`
		Tokens       []string `yaml:"tokens"`
		TotalAmount  uint64   `yaml:"totalAmount"`
		AmountPerWin uint64   `yaml:"amountPerWin"`
		NoOfWinners  uint64   `yaml:"noOfWinners"`
	} `yaml:"reward"`
}

func loadDefinition(path string) (*utility.Utility, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var def utilityDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return def.toUtility()
}

func (d *utilityDefinition) toUtility() (*utility.Utility, error) {
	u := &utility.Utility{
		URI:         d.URI,
		Expiry:      d.Expiry,
		OfferExpiry: d.OfferExpiry,
		Usage:       d.Usage,
		Raffle:      utility.Raffle{StartTime: d.Raffle.StartTime},
	}
	var err error
	if d.Partner != "" {
		if u.Partner, err = crypto.ParseIdentity(d.Partner); err != nil {
			return nil, fmt.Errorf("partner: %w", err)
		}
	}
	if u.ExpiryType, err = utility.ParseExpiryType(defaultString(d.ExpiryType, "none")); err != nil {
		return nil, err
	}
	if u.UsageType, err = utility.ParseUsageType(defaultString(d.UsageType, "unlimited")); err != nil {
		return nil, err
	}
	if u.Selection, err = utility.ParseSelection(defaultString(d.Selection, "all")); err != nil {
		return nil, err
	}
	if u.Reward.Receipt, err = utility.ParseReceipt(defaultString(d.Reward.Receipt, "none")); err != nil {
		return nil, err
	}
	for _, raw := range d.Reward.Tokens {
		tok, err := crypto.ParseIdentity(raw)
		if err != nil {
			return nil, fmt.Errorf("reward token %q: %w", raw, err)
		}
		u.Reward.TokenAddresses = append(u.Reward.TokenAddresses, tok)
	}
	u.Reward.TotalAmount = d.Reward.TotalAmount
	u.Reward.AmountPerWin = d.Reward.AmountPerWin
	u.Reward.NoOfWinners = d.Reward.NoOfWinners
	return u, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

type utilityView struct {
	ID          uint64           `json:"id"`
	Provider    common.Address   `json:"provider"`
	Partner     common.Address   `json:"partner"`
	URI         string           `json:"uri"`
	Expiry      uint64           `json:"expiry"`
	OfferExpiry uint64           `json:"offerExpiry"`
	Usage       uint64           `json:"usage"`
	ExpiryType  string           `json:"expiryType"`
	UsageType   string           `json:"usageType"`
	Selection   string           `json:"selection"`
	RaffleStart uint64           `json:"raffleStartTime"`
	RaffleEnded bool             `json:"raffleEnded"`
	Receipt     string           `json:"receipt"`
	Tokens      []common.Address `json:"tokens"`
	Total       uint64           `json:"totalAmount"`
	PerWin      uint64           `json:"amountPerWin"`
	Winners     uint64           `json:"noOfWinners"`
}

func newUtilityView(id uint64, u *utility.Utility) utilityView {
	return utilityView{
		ID:          id,
		Provider:    u.Provider,
		Partner:     u.Partner,
		URI:         u.URI,
		Expiry:      u.Expiry,
		OfferExpiry: u.OfferExpiry,
		Usage:       u.Usage,
		ExpiryType:  u.ExpiryType.String(),
		UsageType:   u.UsageType.String(),
		Selection:   u.Selection.String(),
		RaffleStart: u.Raffle.StartTime,
		RaffleEnded: u.Raffle.Ended,
		Receipt:     u.Reward.Receipt.String(),
		Tokens:      u.Reward.TokenAddresses,
		Total:       u.Reward.TotalAmount,
		PerWin:      u.Reward.AmountPerWin,
		Winners:     u.Reward.NoOfWinners,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints fields together with the events the command published.
func writeResult(w io.Writer, recorder *events.Recorder, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	recorded := recorder.Events()
	published := make([]any, 0, len(recorded))
	for _, evt := range recorded {
		if payload, ok := utility.Payload(evt); ok {
			published = append(published, payload)
			continue
		}
		published = append(published, map[string]string{"type": evt.EventType()})
	}
	fields["events"] = published
	return writeJSON(w, fields)
}
