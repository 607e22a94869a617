// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/magcal/internal/magcal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const progressInterval = time.Second

// WSMessage is a client request on /ws/calibration.
type WSMessage struct {
	Action string `json:"action"` // start, restart, finish, status, cancel
}

// WSResponse is pushed to the client.
type WSResponse struct {
	Type    string      `json:"type"` // status, progress, complete, error
	Status  *Status     `json:"status,omitempty"`
	Samples int         `json:"samples,omitempty"`
	Results interface{} `json:"results,omitempty"`
	Message string      `json:"message,omitempty"`
}

// calibrationConn serialises writes to one websocket client.
type calibrationConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *calibrationConn) send(resp WSResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(resp); err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
}

// handleCalibrationWS drives cal from a browser session. While the socket is
// open the client receives a progress message with the sample count every second.
func handleCalibrationWS(cal *Calibrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("calibration: websocket upgrade error: %v", err)
			return
		}
		defer ws.Close()
		conn := &calibrationConn{conn: ws}

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					conn.send(WSResponse{Type: "progress", Samples: cal.Status().Samples})
				}
			}
		}()

		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("calibration: websocket read error: %v", err)
				}
				return
			}

			switch msg.Action {
			case "start":
				if cal.Status().State != magcal.StateCollecting.String() {
					cal.Restart()
				}
				conn.sendStatus(cal)
			case "restart":
				cal.Restart()
				conn.sendStatus(cal)
			case "status":
				conn.sendStatus(cal)
			case "finish":
				res, err := cal.Finish()
				if err != nil {
					conn.send(WSResponse{Type: "error", Message: err.Error()})
					continue
				}
				conn.send(WSResponse{Type: "complete", Results: res})
			case "cancel":
				log.Printf("calibration: cancelled by user")
				return
			default:
				conn.send(WSResponse{Type: "error", Message: "unknown action " + msg.Action})
			}
		}
	}
}

func (c *calibrationConn) sendStatus(cal *Calibrator) {
	st := cal.Status()
	c.send(WSResponse{Type: "status", Status: &st})
}
