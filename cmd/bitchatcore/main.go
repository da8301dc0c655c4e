// Command bitchatcore is a demo harness for this module's Noise-mesh
// core: it drives a loopback handshake between two local identities,
// exchanges an encrypted chat message over the wire codec, derives a
// channel key and round-trips one channel message under it, and watches its TOML config file for hot-reloadable
// tunables. The cryptographic core itself is a library with no exit
// codes or CLI surface of its own; this binary only wires the pieces
// together, grounded on the teacher's main.go orchestration shape
// (load config, build a logger, start a config watcher, run the
// protocol loop) adapted from VPN tunnel setup to mesh session setup.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeugmaster/bitchat-sub002/channel"
	"github.com/zeugmaster/bitchat-sub002/config"
	"github.com/zeugmaster/bitchat-sub002/crypto"
	"github.com/zeugmaster/bitchat-sub002/logging"
	"github.com/zeugmaster/bitchat-sub002/peer"
	"github.com/zeugmaster/bitchat-sub002/ratelimit"
	"github.com/zeugmaster/bitchat-sub002/securitylog"
	"github.com/zeugmaster/bitchat-sub002/session"
	"github.com/zeugmaster/bitchat-sub002/store"
	"github.com/zeugmaster/bitchat-sub002/validator"
	"github.com/zeugmaster/bitchat-sub002/wire"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to a TOML config file (defaults to built-in tunables)")
	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
			os.Exit(1)
		}
		cfg = loaded
	}

	baseLogger := logging.New(logging.ParseLevel(cfg.Logging.Level), os.Stdout)
	logger := baseLogger.Component("bitchatcore")
	secLog := securitylog.New(os.Stdout, 256)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfgPath != "" {
		watcher := config.NewWatcher(cfgPath, cfg, 10)
		startConfigWatcher(ctx, watcher, baseLogger)
	}

	if err := runDemo(logger, secLog, cfg); err != nil {
		logger.Error("demo run failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// runDemo exercises the full stack end-to-end: two peers complete an XX
// handshake, exchange one encrypted chat message through the wire
// codec, and a channel key is derived for epoch 1 and used to encrypt
// and decrypt one channel message.
func runDemo(logger *logging.Logger, secLog *securitylog.Sink, cfg *config.Config) error {
	limiter := ratelimit.NewLimiter()
	peers := peer.NewRegistry()

	if err := validator.ValidatePeerID("alice"); err != nil {
		return err
	}
	if err := validator.ValidatePeerID("bob"); err != nil {
		return err
	}

	aliceKX := crypto.Curve25519KeyExchange{}
	bobKX := crypto.Curve25519KeyExchange{}
	alicePriv, alicePub, err := aliceKX.GenerateKeypair()
	if err != nil {
		return err
	}
	bobPriv, bobPub, err := bobKX.GenerateKeypair()
	if err != nil {
		return err
	}

	alice := session.NewManager(crypto.PatternXX, alicePriv, alicePub, logger, secLog)
	bob := session.NewManager(crypto.PatternXX, bobPriv, bobPub, logger, secLog)

	alice.OnSessionEstablished(func(peerID string, _ [32]byte) {
		peers.Get(peerID).TouchHandshake()
		logger.Info("session established", map[string]any{"peer": peerID})
	})
	bob.OnSessionEstablished(func(peerID string, _ [32]byte) {
		peers.Get(peerID).TouchHandshake()
	})

	if !limiter.AllowHandshake("bob", time.Now()) {
		secLog.RateLimited("bob", "handshake cap exceeded")
		return nil
	}

	msg1, err := alice.InitiateHandshake("bob")
	if err != nil {
		return err
	}
	msg2, err := bob.HandleIncomingHandshake("alice", msg1)
	if err != nil {
		return err
	}
	msg3, err := alice.HandleIncomingHandshake("bob", msg2)
	if err != nil {
		return err
	}
	if _, err := bob.HandleIncomingHandshake("alice", msg3); err != nil {
		return err
	}

	// Build and encrypt one chat message from alice to bob.
	chat := &wire.Message{
		TimestampMillis: uint64(time.Now().UnixMilli()),
		ID:              "demo-1",
		Sender:          "alice",
		Content:         []byte("hello mesh"),
		HasSenderPeerID: true,
		SenderPeerID:    "alice",
	}
	plaintext, err := wire.EncodeMessage(chat)
	if err != nil {
		return err
	}
	if err := validator.ValidateMessageSize(len(plaintext)); err != nil {
		return err
	}
	if !limiter.AllowMessage("bob", time.Now()) {
		secLog.RateLimited("bob", "message cap exceeded")
		return nil
	}
	ciphertext, err := alice.Encrypt("bob", plaintext)
	if err != nil {
		return err
	}

	packet := &wire.Packet{
		Version:   wire.CurrentVersion,
		Type:      1,
		TTL:       5,
		Timestamp: uint64(time.Now().Unix()),
		SenderID:  [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Payload:   ciphertext,
	}
	encoded, err := wire.EncodePacket(packet)
	if err != nil {
		return err
	}

	decodedPacket, err := wire.DecodePacket(encoded)
	if err != nil {
		return err
	}
	decryptedPlaintext, err := bob.Decrypt("alice", decodedPacket.Payload)
	if err != nil {
		return err
	}
	decodedMsg, err := wire.DecodeMessage(decryptedPlaintext)
	if err != nil {
		return err
	}

	peers.Get("alice").TouchSend()
	peers.Get("bob").TouchReceive()

	logger.Info("chat message delivered", map[string]any{
		"sender":  decodedMsg.Sender,
		"content": string(decodedMsg.Content),
	})

	// Derive a channel key for a demo channel and round-trip one message.
	rotator := channel.NewRotator(store.NewMemory())
	key, epoch, err := rotator.GetCurrentKey("#general", "correct horse battery staple", "alice-fp", time.Now())
	if err != nil {
		return err
	}
	ciphertextChan, err := channel.EncryptMessage("welcome to the channel", key)
	if err != nil {
		return err
	}
	if _, err := channel.DecryptMessage(ciphertextChan, key); err != nil {
		return err
	}
	logger.Info("channel key ready", map[string]any{"channel": "#general", "epoch": epoch.N})

	return nil
}

// startConfigWatcher reloads w whenever its underlying file changes on
// disk. Grounded on the teacher's startConfigWatcher, rewritten to use
// fsnotify's inotify-backed events instead of the teacher's stat-polling
// ticker; w itself owns the load-and-diff logic and the reload history.
func startConfigWatcher(ctx context.Context, w *config.Watcher, logger *logging.Logger) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watcher init failed", map[string]any{"error": err.Error()})
		return
	}
	if err := fsw.Add(w.Path()); err != nil {
		logger.Warn("config watcher add failed", map[string]any{"error": err.Error(), "path": w.Path()})
		fsw.Close()
		return
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := w.Reload(); err != nil {
					logger.Warn("config reload failed", map[string]any{"error": err.Error()})
					continue
				}
				updated := w.Current()
				logger.Info("config reloaded", map[string]any{"path": w.Path(), "changed": w.LastReload().Changed})
				logger.SetLevel(logging.ParseLevel(updated.Logging.Level))
			case watchErr, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", map[string]any{"error": watchErr.Error()})
			}
		}
	}()
}
