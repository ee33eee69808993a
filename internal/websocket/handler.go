package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// ScopeFunc reports which unit a request may watch: 0 for every unit, or
// ok=false to refuse the connection.
type ScopeFunc func(r *http.Request) (unitID int64, ok bool)

// HandleWebSocket upgrades scoped requests and serves them as hub clients.
// originPatterns is passed through to the upgrader; an empty list only
// admits same-host origins.
func HandleWebSocket(hub *Hub, scope ScopeFunc, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, ok := scope(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"no active tenancy"}` + "\n"))
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("websocket accept", "unit_id", unitID, "error", err)
			return
		}
		defer conn.CloseNow()

		hub.logger.Debug("websocket connected", "unit_id", unitID, "remote", r.RemoteAddr)
		NewClient(hub, conn, unitID).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
