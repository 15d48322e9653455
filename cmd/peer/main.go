// Peer is a headless call client.
// It registers with the coordinator, can call, answer and chat,
// and sends synthetic media.
package main

import (
	"context"
	"errors"
	goflag "flag"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/xid"
	flag "github.com/spf13/pflag"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/client"
	"github.com/wirecall/wirecall/pkg/com"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/logger"
	"github.com/wirecall/wirecall/pkg/network"
	"github.com/wirecall/wirecall/pkg/network/webrtc"
	xos "github.com/wirecall/wirecall/pkg/os"
)

var Version = "?"

type actions struct {
	call    string
	to      string
	message string
	attach  string
}

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf, file, err := config.NewPeerConfig(config.PeekPath(os.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	conf.WithFlags(flag.CommandLine)
	var do actions
	flag.StringVar(&do.call, "call", "", "User id to call")
	flag.StringVar(&do.to, "to", "", "Chat message recipient, everyone if empty")
	flag.StringVarP(&do.message, "message", "m", "", "Chat message to send")
	flag.StringVar(&do.attach, "attach", "", "A file to attach to the chat message")
	flag.Parse()

	log := logger.NewConsole(conf.Peer.Debug, "p", false)
	log.Info().Msgf("version %s", Version)
	if file != "" {
		log.Info().Msgf("config: %v", file)
	}

	ctx, cancel := xos.TerminationContext(context.Background())
	defer cancel()
	if err := run(ctx, conf, do, log); err != nil {
		log.Error().Err(err).Msg("peer")
		cancel()
		os.Exit(1)
	}
}

var errGone = errors.New("coordinator is gone")

// run keeps the peer connected until the context is done.
func run(ctx context.Context, conf config.PeerConfig, do actions, log *logger.Logger) error {
	address, err := url.Parse(conf.Peer.Address)
	if err != nil {
		return err
	}
	factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		return err
	}
	self := api.Identity{Id: conf.Peer.Identity.Id, Name: conf.Peer.Identity.Name, Avatar: conf.Peer.Identity.Avatar}
	if self.Id == "" {
		self.Id = xid.New().String()
	}

	retry := network.NewRetry()
	for {
		err = session(ctx, *address, self, factory, conf, &do, &retry, log)
		if err == nil || !errors.Is(err, errGone) {
			return err
		}
		log.Warn().Err(err).Msgf("reconnect in %v", retry.Time())
		if retry.Fail(ctx) != nil {
			return nil
		}
	}
}

// session runs one coordinator connection,
// the actions are done once on the first one.
func session(ctx context.Context, address url.URL, self api.Identity, factory *webrtc.ApiFactory,
	conf config.PeerConfig, do *actions, retry *network.Retry, log *logger.Logger) error {
	sock, err := com.NewConnector().NewClient(address, log)
	if err != nil {
		return fmt.Errorf("%w: %w", errGone, err)
	}
	defer sock.Disconnect()
	retry.Success()

	var cl *client.Client
	handlers := client.Handlers{
		OnRoster: func(entries []api.PresenceEntry) {
			log.Info().Msgf("online: %v", len(entries))
			for _, e := range entries {
				log.Info().Msgf("  %v (%v)", e.Identity.Id, e.Identity.Name)
			}
		},
		OnIncoming: func(rq api.CallIncomingNotice) {
			log.Info().Msgf("incoming call from %v", rq.Caller.Id)
			if !conf.Peer.AutoAccept {
				return
			}
			go func() {
				if err := cl.Accept(ctx); err != nil {
					log.Error().Err(err).Msg("accept")
				}
			}()
		},
		OnState: func(from, to string) { log.Info().Msgf("call: %v -> %v", from, to) },
		OnMessage: func(m api.ChatEnvelope) {
			msg := log.Info().Str("from", m.From)
			if m.Attachment != nil {
				msg = msg.Str("file", m.Attachment.Name).Str("mime", m.Attachment.MimeType)
			}
			msg.Msg(m.Message)
		},
		OnRemoteTrack: func(t client.RemoteTrack) { log.Info().Msgf("remote %v track", t.Kind) },
	}
	cl = client.New(self, sock, webrtc.NewDevices(nil, log), webrtc.NewPeerFactory(factory, log), handlers,
		client.Options{
			Constraints: client.Constraints{Audio: !conf.Peer.NoAudio, Video: !conf.Peer.NoVideo},
			EndedDelay:  conf.Peer.EndedDelay,
		}, log)
	defer cl.Close()

	sock.OnPacket(cl.Route)
	sock.Listen()
	if err = cl.Register(); err != nil {
		return err
	}
	log.Info().Msgf("registered as %v", self.Id)

	if err = do.run(ctx, cl, log); err != nil {
		return err
	}
	*do = actions{}

	select {
	case <-ctx.Done():
		cl.Hangup()
		return nil
	case <-sock.Done():
		return errGone
	}
}

func (do actions) run(ctx context.Context, cl *client.Client, log *logger.Logger) (err error) {
	if do.message != "" || do.attach != "" {
		var att *api.Attachment
		if do.attach != "" {
			if att, err = client.LoadAttachment(do.attach); err != nil {
				return err
			}
		}
		if _, err = cl.SendMessage(do.to, do.message, att); err != nil {
			return err
		}
	}
	if do.call == "" {
		return nil
	}
	if err = cl.Call(ctx, do.call); err != nil {
		if errors.Is(err, api.ErrTargetOffline) || errors.Is(err, api.ErrBusy) {
			log.Warn().Err(err).Msgf("can't call %v", do.call)
			return nil
		}
	}
	return err
}
