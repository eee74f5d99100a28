// Package eventlog fetches snapshots from the indexed event log, a GraphQL
// endpoint that serves the pending transfers and leaderboard records.
package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/snapshot"
)

// maxResponseSize protects against a misbehaving endpoint
const maxResponseSize = 32 << 20

// New returns a Client for the GraphQL endpoint at url
func New(url string, timeout time.Duration, l logrus.FieldLogger) *Client {
	return &Client{
		url: url,
		hc: &http.Client{
			Timeout: timeout,
		},
		l: l.WithField("source", "eventlog"),
	}
}

// Client queries the indexed event log
type Client struct {
	url string
	hc  *http.Client
	l   logrus.FieldLogger
}

// FetchEvents returns the current events snapshot. Only achievement records
// with a rank above minRank and artifacts with a tier above minTier are
// returned.
func (c *Client) FetchEvents(ctx context.Context, minRank, minTier uint64) (snapshot.Events, error) {
	body, err := json.Marshal(request{
		Query: query,
		Variables: map[string]any{
			"rank": clampInt32(minRank),
			"tier": clampInt32(minTier),
		},
	})
	if err != nil {
		return snapshot.Events{}, errors.Wrap(err, "marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return snapshot.Events{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return snapshot.Events{}, errors.Wrap(err, "query event log")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return snapshot.Events{}, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return snapshot.Events{}, fmt.Errorf("event log returned status %d", resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(payload, &r); err != nil {
		return snapshot.Events{}, errors.Wrap(err, "decode response")
	}
	if len(r.Errors) > 0 {
		msgs := lo.Map(r.Errors, func(e graphQLError, _ int) string {
			return e.Message
		})
		return snapshot.Events{}, fmt.Errorf("event log query failed: %s", strings.Join(msgs, "; "))
	}
	if r.Data == nil {
		return snapshot.Events{}, errors.New("event log returned no data")
	}

	ev := convert(*r.Data)
	c.l.WithFields(logrus.Fields{
		"transfers":           len(ev.Transfers),
		"block":               ev.Block.Number,
		"has_indexing_errors": ev.HasIndexingErrors,
	}).Debug("Fetched events")
	return ev, nil
}

func convert(d data) snapshot.Events {
	ev := snapshot.Events{
		Transfers: lo.Map(d.Arrivals, func(a arrival, _ int) snapshot.Transfer {
			return snapshot.Transfer{
				ID:            a.ArrivalID,
				Actor:         a.Player.ID,
				Origin:        a.FromPlanet.ID,
				OriginSpeed:   a.FromPlanet.Speed,
				DepartureTime: a.DepartureTime,
				ArrivalTime:   a.ArrivalTime,
				Value:         a.MilliSilverMoved,
			}
		}),
		HasIndexingErrors: d.Meta.HasIndexingErrors,
		Deployment:        d.Meta.Deployment,
		Block: snapshot.Block{
			Number: d.Meta.Block.Number,
			Hash:   d.Meta.Block.Hash,
		},
	}
	if len(d.Hats) > 0 {
		h := d.Hats[0]
		ev.Achievement = &snapshot.Achievement{
			Rank:     h.HatLevel,
			Actor:    h.Player.ID,
			Location: h.Planet.ID,
		}
	}
	if len(d.Artifacts) > 0 {
		a := d.Artifacts[0]
		ev.Artifact = &snapshot.Artifact{
			ID:         a.ID,
			Rarity:     a.Rarity,
			Tier:       a.PlanetLevel,
			Discoverer: a.Discoverer.ID,
			Location:   a.PlanetDiscoveredOn.ID,
		}
	}
	return ev
}

// clampInt32 keeps a floor within the GraphQL Int range
func clampInt32(v uint64) int64 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int64(v)
}
