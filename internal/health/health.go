package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BrokerPinger is satisfied by *nsq.Producer.
type BrokerPinger interface {
	Ping() error
}

type Status struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Database string `json:"database,omitempty"`
	Broker   string `json:"broker,omitempty"`
}

// HTTPHandler returns an HTTP handler reporting the health of the durable store
// and the task broker. Either dependency may be nil and is then skipped.
func HTTPHandler(pool *pgxpool.Pool, broker BrokerPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{OK: true, Message: "ok"}

		if pool != nil {
			st.Database = "healthy"
			ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				st.OK = false
				st.Message = "db ping failed"
				st.Database = "unhealthy"
			}
		}
		if broker != nil {
			st.Broker = "healthy"
			if err := broker.Ping(); err != nil {
				st.OK = false
				st.Message = "broker ping failed"
				st.Broker = "unhealthy"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !st.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	}
}
