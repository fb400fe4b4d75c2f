package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayneWudh/aiagent/internal/engine"
	"github.com/wayneWudh/aiagent/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

const (
	wsReadLimit     = 4096
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// handleCandleWS handles the candle ingest WebSocket. Each text frame is one
// candle JSON document; every frame gets an acknowledgement frame back, so a
// feeder can detect rejected candles without tearing down the connection.
func (s *Server) handleCandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if m := s.svc.Metrics(); m != nil {
		m.WSClients.Inc()
		defer m.WSClients.Dec()
	}
	log.Printf("[api] ws feeder connected from %s", r.RemoteAddr)
	defer log.Printf("[api] ws feeder disconnected from %s", r.RemoteAddr)

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		ack := s.ingestFrame(r, msg)
		conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (s *Server) ingestFrame(r *http.Request, msg []byte) wsAck {
	var c model.Candle
	if err := json.Unmarshal(msg, &c); err != nil {
		return wsAck{
			ErrorCode: model.CodeInvalidCandle,
			Message:   "malformed candle JSON: " + err.Error(),
		}
	}

	status, err := s.svc.Submit(r.Context(), c)
	if err != nil {
		ack := wsAck{Message: err.Error()}
		if ve, ok := model.AsValidation(err); ok {
			ack.ErrorCode = ve.Code
		}
		return ack
	}
	return wsAck{Accepted: true, Duplicate: status == engine.SubmitDuplicate}
}
