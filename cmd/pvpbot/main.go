// Command pvpbot plays PvP matches headlessly against a pairing server.
//
//	pvpbot -sessions alice,bob -bet 10 -balance 50
//
// Every listed session connects, queues and auto-plays; a lone session ends
// up in the solo fallback after the queue timeout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"affection_pvp/internal/config"
	"affection_pvp/internal/logger"
	"affection_pvp/internal/pvp"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadClient()

	var (
		sessions = flag.String("sessions", "bot-a,bot-b", "comma separated gameplay session ids")
		url      = flag.String("url", cfg.WSBaseURL, "pairing server base url")
		bet      = flag.Int("bet", 10, "stake per session")
		balance  = flag.Int("balance", 50, "affection balance the client assumes")
		skill    = flag.Float64("skill", 0.7, "0..1, how well the bot plays")
		timeout  = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Component("pvpbot")

	ids := strings.Split(*sessions, ",")
	dialer := pvp.NewWSDialer(*url)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	outcomes := make([]*outcome, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		b := newBot(id, *bet, *balance, *skill, dialer, pvp.DefaultConfig(), log)
		g.Go(func() error {
			out, err := b.run(ctx)
			outcomes[i] = out
			return err
		})
	}

	err := g.Wait()
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		switch {
		case out.Result != nil:
			fmt.Printf("%s: %s final_bet=%d affection=%d settled=%v\n",
				out.SessionID, out.Result.Status, out.Result.FinalBet, out.Result.NewAffection, out.Result.Settled)
		case out.Solo != nil:
			fmt.Printf("%s: solo success=%v\n", out.SessionID, *out.Solo)
		default:
			fmt.Printf("%s: no outcome\n", out.SessionID)
		}
	}
	if err != nil {
		log.Error("bot run failed", "error", err)
		os.Exit(1)
	}
}
