package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"time"

	"spellcast/server/internal/arena"
	"spellcast/server/internal/catalog"
	"spellcast/server/internal/net/ws"
	"spellcast/server/logging"
)

// ProtocolVersion tracks the shape of command responses.
const ProtocolVersion = 1

const maxCommandBytes = 64 << 10

// Host is the arena surface the handlers drive.
type Host interface {
	Enqueue(cmd arena.Command) error
	Snapshot() arena.Snapshot
	Tick() uint64
}

type Catalog interface {
	IDs() []string
	Resolve(id string) (catalog.Entry, bool)
	Reload() error
}

type HTTPHandlerConfig struct {
	Logger   *log.Logger
	TickRate int
	Feed     *ws.Feed
	Catalog  Catalog
	Router   interface{ Stats() logging.RouterStats }
	Counters interface{ Snapshot() map[string]uint64 }
}

type commandAckMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq,omitempty"`
	Tick   uint64 `json:"tick"`
	UnitID string `json:"unitId,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq,omitempty"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type commandRequest struct {
	arena.Command
	Seq uint64 `json:"seq,omitempty"`
}

type abilityView struct {
	ID           string   `json:"id"`
	ConfigID     int      `json:"configId"`
	Name         string   `json:"name"`
	PreviewRange float64  `json:"previewRange"`
	CooldownMs   int64    `json:"cooldownMs"`
	Steps        []string `json:"steps"`
	Source       string   `json:"source"`
}

func NewHTTPHandler(host Host, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			TickRate   int               `json:"tickRate"`
			Arena      arena.Snapshot    `json:"arena"`
			Logging    any               `json:"logging,omitempty"`
			Feed       *ws.FeedStats     `json:"feed,omitempty"`
			Counters   map[string]uint64 `json:"counters,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   cfg.TickRate,
			Arena:      host.Snapshot(),
		}
		if cfg.Router != nil {
			payload.Logging = cfg.Router.Stats()
		}
		if cfg.Feed != nil {
			stats := cfg.Feed.Stats()
			payload.Feed = &stats
		}
		if cfg.Counters != nil {
			payload.Counters = cfg.Counters.Snapshot()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/commands", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req commandRequest
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxCommandBytes))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeJSON(w, nethttp.StatusBadRequest, commandRejectMessage{
				Ver:    ProtocolVersion,
				Type:   "commandReject",
				Reason: "invalid payload",
			})
			return
		}

		if err := host.Enqueue(req.Command); err != nil {
			status := nethttp.StatusBadRequest
			retry := false
			if errors.Is(err, arena.ErrQueueFull) {
				status = nethttp.StatusTooManyRequests
				retry = true
			}
			writeJSON(w, status, commandRejectMessage{
				Ver:    ProtocolVersion,
				Type:   "commandReject",
				Seq:    req.Seq,
				Reason: err.Error(),
				Retry:  retry,
			})
			return
		}

		writeJSON(w, nethttp.StatusAccepted, commandAckMessage{
			Ver:    ProtocolVersion,
			Type:   "commandAck",
			Seq:    req.Seq,
			Tick:   host.Tick(),
			UnitID: req.UnitID,
		})
	})

	mux.HandleFunc("/abilities", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Catalog == nil {
			httpError(w, "catalog unavailable", nethttp.StatusNotFound)
			return
		}
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, nethttp.StatusOK, struct {
			Abilities []abilityView `json:"abilities"`
		}{Abilities: abilityViews(cfg.Catalog)})
	})

	mux.HandleFunc("/abilities/reload", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Catalog == nil {
			httpError(w, "catalog unavailable", nethttp.StatusNotFound)
			return
		}
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if err := cfg.Catalog.Reload(); err != nil {
			logger.Printf("catalog reload failed: %v", err)
			httpError(w, err.Error(), nethttp.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, nethttp.StatusOK, struct {
			Status    string `json:"status"`
			Abilities int    `json:"abilities"`
		}{Status: "ok", Abilities: len(cfg.Catalog.IDs())})
	})

	if cfg.Feed != nil {
		mux.HandleFunc("/ws", ws.NewHandler(cfg.Feed, ws.HandlerConfig{Logger: logger}).Handle)
	}

	return mux
}

func abilityViews(c Catalog) []abilityView {
	ids := c.IDs()
	views := make([]abilityView, 0, len(ids))
	for _, id := range ids {
		entry, ok := c.Resolve(id)
		if !ok {
			continue
		}
		steps := make([]string, 0, entry.Descriptor.Len())
		for i := 0; i < entry.Descriptor.Len(); i++ {
			step, _ := entry.Descriptor.StepType(i)
			steps = append(steps, string(step))
		}
		views = append(views, abilityView{
			ID:           entry.ID,
			ConfigID:     entry.ConfigID,
			Name:         entry.Name,
			PreviewRange: entry.PreviewRange,
			CooldownMs:   entry.Cooldown.Milliseconds(),
			Steps:        steps,
			Source:       entry.Source,
		})
	}
	return views
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
