// Package main provides the bot client binary that connects to a MUD
// server, segments its output, and drives the automation loop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/bot"
	"github.com/cory-johannsen/mudbot/internal/classify"
	"github.com/cory-johannsen/mudbot/internal/config"
	"github.com/cory-johannsen/mudbot/internal/console"
	"github.com/cory-johannsen/mudbot/internal/game/world"
	"github.com/cory-johannsen/mudbot/internal/observability"
	"github.com/cory-johannsen/mudbot/internal/parse"
	"github.com/cory-johannsen/mudbot/internal/scripting"
	"github.com/cory-johannsen/mudbot/internal/server"
	"github.com/cory-johannsen/mudbot/internal/storage/postgres"
	"github.com/cory-johannsen/mudbot/internal/stream"
	"github.com/cory-johannsen/mudbot/internal/transport/telnet"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	roomFlush := flag.Duration("room-flush", 30*time.Second, "interval between world-map saves to the database")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting bot client",
		zap.String("game_addr", cfg.Game.Addr()),
	)

	// Connect to PostgreSQL for learned patterns, sessions, and the world map
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	patternRepo := postgres.NewPatternRepository(pool.DB())
	sessionRepo := postgres.NewSessionRepository(pool.DB())
	roomRepo := postgres.NewRoomRepository(pool.DB())

	// Build the classifier: loaded rule tables first, built-ins as backstop
	rules := classify.DefaultRules()
	if cfg.Classifier.PatternsDir != "" {
		loaded, err := classify.LoadRules(cfg.Classifier.PatternsDir)
		if err != nil {
			logger.Fatal("loading classifier rules", zap.Error(err))
		}
		logger.Info("loaded classifier rules",
			zap.String("dir", cfg.Classifier.PatternsDir),
			zap.Int("groups", len(loaded)),
		)
		rules = append(loaded, rules...)
	}

	var fallback classify.FallbackClassifier
	if cfg.Classifier.FallbackEnabled {
		fallback = classify.NewAnthropicFallback(cfg.Classifier.FallbackModel, logger)
		logger.Info("fallback classifier enabled",
			zap.String("model", cfg.Classifier.FallbackModel),
		)
	}

	classifier := classify.NewClassifier(cfg.Classifier, rules, patternRepo, fallback, logger)
	if err := classifier.LoadCache(ctx); err != nil {
		logger.Fatal("loading learned patterns", zap.Error(err))
	}
	logger.Info("learned patterns loaded", zap.Int("count", classifier.CacheSize()))

	// Restore the world map
	graph := world.NewGraph(logger)
	rooms, err := roomRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("loading world map", zap.Error(err))
	}
	graph.Load(rooms)
	logger.Info("world map loaded", zap.Int("rooms", graph.RoomCount()))

	// Stream segmentation and status extraction
	extractor := parse.NewExtractor(logger)
	detector := stream.NewDetector(cfg.Segmenter.PromptTimeout, cfg.Segmenter.HistorySize, logger)
	if cfg.Segmenter.Pattern != "" {
		if err := detector.SetPattern(cfg.Segmenter.Pattern); err != nil {
			logger.Fatal("bad prompt pattern", zap.Error(err))
		}
	}

	// Connect to the game
	conn, err := telnet.Dial(cfg.Game.Addr(), cfg.Game.DialTimeout, cfg.Game.WriteTimeout)
	if err != nil {
		logger.Fatal("connecting to game", zap.Error(err))
	}
	logger.Info("connected to game", zap.String("addr", cfg.Game.Addr()))

	// Bot core
	settings, err := bot.NewSettings(cfg.Bot)
	if err != nil {
		logger.Fatal("invalid bot config", zap.Error(err))
	}
	machine := bot.NewMachine(logger)
	coordinator := bot.NewCoordinator(machine, settings, extractor, graph, conn, logger)

	// Trigger scripting
	var engine *scripting.Engine
	if cfg.Scripting.ScriptDir != "" {
		scriptStart := time.Now()
		engine = scripting.NewEngine(cfg.Scripting.InstructionLimit, logger)
		wireEngine(engine, conn, graph, coordinator, logger)
		if err := engine.LoadScripts(cfg.Scripting.ScriptDir); err != nil {
			logger.Fatal("loading trigger scripts", zap.Error(err))
		}
		logger.Info("trigger scripts loaded",
			zap.String("dir", cfg.Scripting.ScriptDir),
			zap.Int("triggers", engine.TriggerCount()),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
		defer engine.Close()
	}

	// Narrative classification runs off the tick loop so a slow fallback
	// call can never delay a flee decision.
	narrativeCh := make(chan string, 256)
	go classifyNarrative(ctx, narrativeCh, classifier, coordinator, logger)

	detector.OnNarrative(func(text string) {
		for _, line := range strings.Split(text, "\n") {
			if line == "" {
				continue
			}
			select {
			case narrativeCh <- line:
			default:
				logger.Warn("classifier backlog full, dropping line", zap.String("line", line))
			}
		}
	})
	detector.OnPrompt(func(p stream.Prompt) {
		_, transitions, ok := extractor.Parse(p.Text)
		if !ok {
			return
		}
		for _, tr := range transitions {
			logger.Debug("status transition",
				zap.Stringer("kind", tr.Kind),
				zap.String("target", tr.Target),
				zap.String("condition", tr.Condition),
			)
			if tr.Kind == parse.ExperienceGained {
				if session := coordinator.Session(); session != nil {
					session.RecordExperience(tr.Amount)
				}
			}
		}
	})
	detector.OnPatternInvalid(func(line string) {
		logger.Warn("prompt pattern did not match finalized prompt",
			zap.String("line", line),
		)
	})

	// The reader's idle flush runs at the detector's check cadence so an
	// unterminated prompt reaches the detector well before its timeout.
	reader := telnet.NewReader(conn, cfg.Segmenter.CheckInterval, func(line string) {
		detector.ProcessLine(line, time.Now())
		if engine != nil {
			engine.OnLine(line)
		}
	}, logger)

	// Operator console
	ops := console.NewConsole(coordinator, detector, settings, classifier, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			return reader.Run(ctx)
		},
		StopFn: func() {
			conn.Close()
		},
	})

	lifecycle.Add("segmenter", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			stop := detector.Start(cfg.Segmenter.CheckInterval)
			defer stop()
			<-ctx.Done()
			return nil
		},
		StopFn: func() {},
	})

	lifecycle.Add("bot", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			// The coordinator only runs after the operator issues "start".
			<-ctx.Done()
			return nil
		},
		StopFn: func() {
			coordinator.Stop()
		},
	})

	lifecycle.Add("persistence", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(*roomFlush)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					saveState(ctx, roomRepo, sessionRepo, graph, coordinator, logger)
				}
			}
		},
		StopFn: func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			saveState(saveCtx, roomRepo, sessionRepo, graph, coordinator, logger)
			pool.Close()
		},
	})

	lifecycle.Add("console", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			runConsole(ctx, ops, logger)
			<-ctx.Done()
			return nil
		},
		StopFn: func() {},
	})

	logger.Info("bot client initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("bot client error", zap.Error(err))
	}
}

// wireEngine connects the Lua bot API to the live components.
func wireEngine(engine *scripting.Engine, conn *telnet.Conn, graph *world.Graph, coordinator *bot.Coordinator, logger *zap.Logger) {
	engine.Send = conn.Send
	engine.Echo = func(msg string) {
		logger.Info("script echo", zap.String("message", msg))
	}
	engine.CreateRoom = func(id, name string) error {
		_, err := graph.CreateRoom(id, name)
		return err
	}
	engine.HandleMovement = func(dir, name string, visibleExits []string, roomID string) error {
		d, ok := world.ParseDirection(dir)
		if !ok {
			return fmt.Errorf("unknown direction %q", dir)
		}
		exits := make([]world.Direction, 0, len(visibleExits))
		for _, raw := range visibleExits {
			if ed, ok := world.ParseDirection(raw); ok {
				exits = append(exits, ed)
			}
		}
		if _, err := graph.HandleMovement(d, name, exits, roomID); err != nil {
			return err
		}
		if session := coordinator.Session(); session != nil {
			session.RecordRoom()
		}
		return nil
	}
	engine.AddUnexploredExits = func(roomID string, dirs []string) error {
		exits := make([]world.Direction, 0, len(dirs))
		for _, raw := range dirs {
			if d, ok := world.ParseDirection(raw); ok {
				exits = append(exits, d)
			}
		}
		return graph.AddUnexploredExits(roomID, exits)
	}
	engine.SetRoomZone = graph.SetZone
	engine.SearchRooms = func(q string) []scripting.RoomInfo {
		rooms := graph.SearchRooms(q)
		out := make([]scripting.RoomInfo, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, scripting.RoomInfo{ID: room.ID, Name: room.Name, Zone: room.Zone})
		}
		return out
	}
	engine.CurrentRoom = func() (scripting.RoomInfo, bool) {
		room, ok := graph.CurrentRoom()
		if !ok {
			return scripting.RoomInfo{}, false
		}
		return scripting.RoomInfo{ID: room.ID, Name: room.Name, Zone: room.Zone}, true
	}
}

// classifyNarrative drains narrative lines through the classifier.
func classifyNarrative(ctx context.Context, lines <-chan string, classifier *classify.Classifier, coordinator *bot.Coordinator, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			event, err := classifier.Classify(ctx, line)
			if err != nil {
				logger.Warn("classification failed", zap.String("line", line), zap.Error(err))
				continue
			}
			if event == nil {
				continue
			}
			logger.Debug("combat event",
				zap.Stringer("type", event.Type),
				zap.String("source", event.Source),
				zap.String("target", event.Target),
				zap.Float64("confidence", event.Confidence),
				zap.String("origin", string(event.Origin)),
			)
			if event.Type == classify.EventExperienceGain && event.Amount > 0 {
				if session := coordinator.Session(); session != nil {
					session.RecordExperience(event.Amount)
				}
			}
		}
	}
}

// saveState flushes the world map and the current session to the database.
func saveState(ctx context.Context, roomRepo *postgres.RoomRepository, sessionRepo *postgres.SessionRepository, graph *world.Graph, coordinator *bot.Coordinator, logger *zap.Logger) {
	if err := roomRepo.SaveAll(ctx, graph.Rooms()); err != nil {
		logger.Warn("saving world map", zap.Error(err))
	}
	if session := coordinator.Session(); session != nil {
		if err := sessionRepo.Save(ctx, session.Summary()); err != nil {
			logger.Warn("saving session", zap.Error(err))
		}
	}
}

// runConsole reads operator commands from stdin until EOF.
func runConsole(ctx context.Context, ops *console.Console, logger *zap.Logger) {
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			reply, err := ops.Execute(ctx, scanner.Text())
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			if reply != "" {
				fmt.Fprintln(os.Stdout, reply)
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("console read failed", zap.Error(err))
		}
	}()
}
