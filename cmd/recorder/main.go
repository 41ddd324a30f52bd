// Copyright (c) 2023-2025 RapidaAI
// Recorder - walks a speaker through the phrase list from the terminal and
// submits the takes to a running collector.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rapidaai/speech-collector/config"
	collector_client "github.com/rapidaai/speech-collector/pkg/clients/collector"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/recorder"
	"github.com/rapidaai/speech-collector/pkg/types"
)

var (
	genders   = []string{"male", "female", "other"}
	ageGroups = []string{"18-30", "31-45", "46-60", "60+"}
)

const help = `commands:
  r  start / stop recording the current phrase
  n  next phrase        p  previous phrase
  d  redo (discard the current take)
  l  listen to the current take
  i  enter demographics
  s  submit all takes
  q  quit`

func main() {
	server := flag.String("server", "", "Collector base url, overrides RECORDER__SERVER_URL")
	device := flag.String("device", "", "ALSA capture device, overrides RECORDER__DEVICE")
	flag.Parse()

	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("unable to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	rc := cfg.RecorderConfig
	if *server != "" {
		rc.ServerUrl = *server
	}
	if *device != "" {
		rc.Device = *device
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name("recorder"),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
		commons.Console(false),
	)
	if err != nil {
		log.Fatalf("unable to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, rc, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		logger.Sync()
		os.Exit(1)
	}
}

type cli struct {
	ctx     context.Context
	session *recorder.Session
	client  collector_client.CollectorServiceClient
	in      *bufio.Scanner
}

func run(ctx context.Context, rc config.RecorderConfig, logger commons.Logger) error {
	client := collector_client.NewCollectorServiceClient(rc.ServerUrl, logger)
	phrases, err := client.Phrases(ctx)
	if err != nil {
		return fmt.Errorf("unable to load phrases from %s: %w", rc.ServerUrl, err)
	}

	mic := recorder.NewArecordMicrophone(logger, rc.Device, recorder.AudioConfig{
		SampleRate: rc.SampleRate,
		Channels:   rc.Channels,
	})
	var opts []recorder.Option
	if rc.Shuffle {
		opts = append(opts, recorder.WithShuffle(rand.New(rand.NewSource(time.Now().UnixNano()))))
	}
	session, err := recorder.NewSession(logger, phrases, mic, client, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	c := &cli{ctx: ctx, session: session, client: client, in: bufio.NewScanner(os.Stdin)}
	fmt.Println(help)
	for {
		c.show()
		cmd, ok := c.prompt("> ")
		if !ok {
			return nil
		}
		switch cmd {
		case "r":
			c.toggle()
		case "n":
			session.Next()
		case "p":
			session.Previous()
		case "d":
			c.alert(session.Redo())
		case "l":
			c.listen()
		case "i":
			c.demographics()
		case "s":
			c.submit()
		case "q":
			if session.RecordedCount() > 0 && !c.confirm("unsubmitted takes will be lost, quit anyway?") {
				continue
			}
			return nil
		case "", "h", "?":
			fmt.Println(help)
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func (c *cli) show() {
	idx, phrase := c.session.Current()
	fmt.Printf("\n[%s] speaker %s  recorded %d/%d\n", c.session.Progress(), c.session.SpeakerID(), c.session.RecordedCount(), c.session.Len())
	fmt.Printf("  %q (%s)\n", phrase, c.session.Status(idx))
}

func (c *cli) prompt(label string) (string, bool) {
	fmt.Print(label)
	if c.ctx.Err() != nil || !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *cli) confirm(question string) bool {
	answer, ok := c.prompt(question + " [y/N] ")
	return ok && strings.EqualFold(answer, "y")
}

func (c *cli) alert(err error) {
	if err != nil {
		fmt.Println("!", err)
	}
}

func (c *cli) toggle() {
	if c.session.IsRecording() {
		c.alert(c.session.Stop())
		return
	}
	if err := c.session.Start(c.ctx); err != nil {
		c.alert(fmt.Errorf("error accessing microphone: %w", err))
		return
	}
	fmt.Println("recording... press r to stop")
}

func (c *cli) listen() {
	idx, _ := c.session.Current()
	path, err := c.session.Playback(idx)
	if err != nil {
		c.alert(err)
		return
	}
	player, err := exec.LookPath("aplay")
	if err != nil {
		fmt.Println("take saved at", path)
		return
	}
	cmd := exec.CommandContext(c.ctx, player, "-q", path)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	c.alert(cmd.Run())
}

func (c *cli) choose(label string, options []string) (string, bool) {
	for i, o := range options {
		fmt.Printf("  %d) %s\n", i+1, o)
	}
	answer, ok := c.prompt(label + ": ")
	if !ok {
		return "", false
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return answer, answer != ""
}

func (c *cli) demographics() {
	var d types.Demographics
	var ok bool
	if d.Gender, ok = c.choose("gender", genders); !ok {
		return
	}
	if d.AgeGroup, ok = c.choose("age group", ageGroups); !ok {
		return
	}
	regions, err := c.client.Regions(c.ctx)
	if err != nil {
		c.alert(fmt.Errorf("unable to load regions: %w", err))
	}
	if d.Region, ok = c.choose("region", regions); !ok {
		return
	}
	c.alert(c.session.SetDemographics(d))
}

func (c *cli) submit() {
	if err := c.session.RequestSubmit(); err != nil {
		c.alert(err)
		return
	}
	if !c.confirm(fmt.Sprintf("submit %d recordings?", c.session.RecordedCount())) {
		c.session.CancelSubmit()
		return
	}
	fmt.Println("submitting...")
	err := c.session.ConfirmSubmit(c.ctx)
	switch {
	case err == nil:
		fmt.Println("All recordings have been successfully submitted!")
	case errors.Is(err, context.Canceled):
		fmt.Println("submission cancelled")
	default:
		c.alert(fmt.Errorf("failed to submit recordings, please try again: %w", err))
	}
}
