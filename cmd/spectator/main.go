package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"sitelocation.ai/internal/observerproto"
)

func main() {
	var (
		url     = flag.String("url", "ws://127.0.0.1:8080/observer/ws", "observer ws url")
		backlog = flag.Bool("backlog", true, "replay rounds settled before connecting")
		raw     = flag.Bool("raw", false, "print frames as received")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[spectator] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Backlog:         *backlog,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("stream closed")
			}
			return
		}
		if *raw {
			os.Stdout.Write(append(msg, '\n'))
			continue
		}
		var rm observerproto.RoundMsg
		if err := json.Unmarshal(msg, &rm); err != nil || rm.Type != observerproto.TypeRound {
			continue
		}
		logRound(logger, &rm)
		if rm.Final {
			return
		}
	}
}

func logRound(logger *log.Logger, rm *observerproto.RoundMsg) {
	logger.Printf("ROUND %d/%d game=%s digest=%.12s", rm.Round, rm.Rounds, rm.GameID, rm.Digest)
	for _, p := range rm.Players {
		status := p.Outcome
		if p.Code != "" {
			status += "(" + p.Code + ")"
		}
		types := make([]string, 0, len(p.Placed))
		for _, s := range p.Placed {
			types = append(types, s.Type)
		}
		logger.Printf("  %d %-14s funds=%.1f revenue=%.1f cost=%.1f share=%.3f stores=%d placed=[%s] turn=%s",
			p.ID, p.Name, p.Funds, p.Revenue, p.Cost, p.Share, p.TotalStores, strings.Join(types, ","), status)
	}
	if rm.Final && rm.Winner != nil {
		name := ""
		for _, p := range rm.Players {
			if p.ID == *rm.Winner {
				name = p.Name
			}
		}
		logger.Printf("WINNER %d %s", *rm.Winner, name)
	}
}
