package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/observability/logger"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"go.uber.org/zap"
)

const (
	donationHeartbeat = 15 * time.Second
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = (wsPongWait * 9) / 10
)

// donationStream resolves the optional ?wish_id= filter to a hub stream.
func (s *Server) donationStream(c *gin.Context) (string, error) {
	raw := strings.TrimSpace(c.Query("wish_id"))
	if raw == "" {
		return liveevents.StreamAll, nil
	}

	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return "", catalogdomain.ErrInvalidID
	}
	if _, err := s.catalogSvc.FindWishByID(c.Request.Context(), id); err != nil {
		return "", err
	}
	return liveevents.WishStream(id), nil
}

// StreamDonations is the server-sent events feed of applied donations.
func (s *Server) StreamDonations(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	name, err := s.donationStream(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.hub.Subscribe(name)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	for _, event := range backlog {
		if err := writeDonationEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(donationHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-subscription.Events():
			if err := writeDonationEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeDonationEvent(w io.Writer, event paymentdomain.DonationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: donation\ndata: %s\n\n", data)
	return err
}

// DonationsWebSocket carries the same feed as StreamDonations over a
// websocket. Client messages are read and discarded.
func (s *Server) DonationsWebSocket(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	name, err := s.donationStream(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.hub.Subscribe(name)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	log := logger.FromContext(c.Request.Context())
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readDonationSocket(conn, closed, log)

	for _, event := range backlog {
		if err := writeDonationSocket(conn, event); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case event := <-subscription.Events():
			if err := writeDonationSocket(conn, event); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeDonationSocket(conn *websocket.Conn, event paymentdomain.DonationEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

func readDonationSocket(conn *websocket.Conn, closed chan<- struct{}, log *zap.Logger) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("donation socket closed", zap.Error(err))
			}
			return
		}
	}
}
