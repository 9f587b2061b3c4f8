package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/kinkeeper/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and subscribes the
// connection to the caller's household. It must sit behind household
// middleware.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		householdID := auth.HouseholdID(r.Context())
		if householdID == 0 {
			http.Error(w, "no household", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, householdID).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
