// Package ddb periodically refreshes the device database and ignore list
// that the gateway uses to classify incoming positions.
package ddb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ogn-network/ogn-gateway/pkg/log"
	"github.com/ogn-network/ogn-gateway/pkg/store"
)

// DefaultInterval is the refresh cadence used when New is called without
// an explicit interval (zero or negative).
const DefaultInterval = 3 * time.Hour

var logger = log.ForService("ddb")

// Device is one entry of the published device database, keyed by the
// prefixed OGN device id.
type Device struct {
	Model        string `json:"model,omitempty"`
	Registration string `json:"registration,omitempty"`
	Callsign     string `json:"callsign,omitempty"`
	Category     int16  `json:"category"`
}

type rawDevice struct {
	DeviceType    string `json:"device_type"`
	DeviceID      string `json:"device_id"`
	AircraftModel string `json:"aircraft_model"`
	AircraftType  string `json:"aircraft_type"`
	Registration  string `json:"registration"`
	CN            string `json:"cn"`
	Tracked       string `json:"tracked"`
	Identified    string `json:"identified"`
}

type rawResponse struct {
	Devices []rawDevice `json:"devices"`
}

// Updater downloads the device database and writes it, plus the derived
// ignore list, into the store.
type Updater struct {
	store      *store.Store
	url        string
	interval   time.Duration
	httpClient *http.Client
}

// New constructs an Updater that fetches url and persists into st, refreshing
// every interval. A zero or negative interval falls back to DefaultInterval.
func New(st *store.Store, url string, interval time.Duration) *Updater {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Updater{
		store:      st,
		url:        url,
		interval:   interval,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Start runs an immediate refresh and arms the refresh ticker at the
// Updater's configured interval. It returns once the jobs are scheduled;
// they keep running until ctx is cancelled.
func (u *Updater) Start(ctx context.Context) {
	go func() {
		if err := u.Update(ctx); err != nil {
			logger.Warnf("initial device database refresh: %v", err)
		}

		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := u.Update(ctx); err != nil {
					logger.Warnf("device database refresh: %v", err)
				}
			}
		}
	}()
}

// Update performs one fetch-parse-write cycle.
func (u *Updater) Update(ctx context.Context) error {
	logger.Infof("downloading device database from %s", u.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return fmt.Errorf("ddb: building request: %w", err)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ddb: downloading device database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ddb: unexpected status %d", resp.StatusCode)
	}

	var parsed rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("ddb: parsing device database: %w", err)
	}

	devices := make(map[string]Device)
	var ignored []string

	for _, d := range parsed.Devices {
		var prefix string
		switch d.DeviceType {
		case "F":
			prefix = "FLR"
		case "I":
			prefix = "ICA"
		case "O":
			prefix = "OGN"
		default:
			continue
		}

		category, err := strconv.ParseInt(d.AircraftType, 10, 16)
		if err != nil {
			continue
		}

		id := prefix + d.DeviceID
		devices[id] = Device{
			Model:        d.AircraftModel,
			Registration: d.Registration,
			Callsign:     d.CN,
			Category:     int16(category),
		}

		if d.Tracked == "N" {
			ignored = append(ignored, id)
		}
	}

	devicesJSON, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("ddb: marshaling device database: %w", err)
	}
	if err := u.store.WriteDDB(string(devicesJSON)); err != nil {
		return fmt.Errorf("ddb: writing device database: %w", err)
	}

	if ignored == nil {
		ignored = []string{}
	}
	ignoredJSON, err := json.Marshal(ignored)
	if err != nil {
		return fmt.Errorf("ddb: marshaling ignore list: %w", err)
	}
	if err := u.store.WriteIgnore(string(ignoredJSON)); err != nil {
		return fmt.Errorf("ddb: writing ignore list: %w", err)
	}

	logger.Debugf("updated %d device records, %d ignored", len(devices), len(ignored))
	return nil
}
