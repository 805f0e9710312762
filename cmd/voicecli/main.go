package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/unclewu3242592726/aitutor/pkg/audio"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/realtime"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
)

var (
	configFile = flag.String("f", "etc/voicecli.yaml", "the config file")
	outputFile = flag.String("o", "reply.pcm", "assistant audio output (PCM16 mono 24kHz)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: voicecli [-f config] [-o reply.pcm] utterance.wav [more.wav ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var c Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())
	logx.MustSetup(c.Log)
	defer logx.Close()

	if c.APIKey == "" {
		c.APIKey = os.Getenv("STEPFUN_API_KEY")
	}

	if err := run(c, flag.Args()); err != nil {
		logx.Errorf("voicecli: %v", err)
		logx.Close()
		os.Exit(1)
	}
}

func run(c Config, inputs []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utterances := make([][]float32, 0, len(inputs))
	for _, path := range inputs {
		pcm, rate, err := readPCM(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if rate != 0 && rate != audio.SampleRate {
			logx.Infof("%s 采样率为 %dHz，上游按 %dHz 处理", path, rate, audio.SampleRate)
		}
		utterances = append(utterances, audio.PCM16ToFloat(pcm))
	}

	out, err := os.Create(*outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	store, err := usage.NewStore(usage.StoreTypeFile, usage.WithFilePath(c.Usage.FilePath))
	if err != nil {
		return err
	}
	defer store.Close()
	tracker := usage.NewTracker(ctx, store, c.Usage.Capacity)

	deps := realtime.Deps{
		Dialer: realtime.WSDialer{RelayURL: c.RelayURL},
		Sink:   audio.NewTimedSink(out, audio.SampleRate, c.Realtime),
		Probe: selector.NewLatencyProbe(c.Probe.URL,
			selector.WithProbeTimeout(c.Probe.Timeout),
			selector.WithProbeWindow(c.Probe.Window)),
		Device:  selector.NewDeviceDetector(selector.HostSignals),
		Tracker: tracker,
	}
	if c.Cards.BaseURL != "" {
		deps.Cards = cards.NewClient(c.Cards.BaseURL, c.Cards.Timeout)
	}
	// 首轮选择前先测一次延迟
	deps.Probe.Measure(ctx)

	preferred, _ := model.ParseModel(c.PreferredModel)
	m, _ := model.ParseModel(c.Model)
	spk := newSpeaker(c)
	client := realtime.NewClient(realtime.Config{
		APIKey:       c.APIKey,
		Model:        m,
		Voice:        c.Voice,
		Instructions: c.Instructions,
		AutoSelect:   c.AutoSelect,
		Preferences: selector.Preferences{
			DataSaver:      c.DataSaver,
			PreferredModel: preferred,
		},
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		ReconnectDelay:       c.ReconnectDelay,
		WriteTimeout:         c.WriteTimeout,
		Subject:              c.Cards.Subject,
		Persona:              c.Cards.Persona,
		CardEvery:            c.Cards.Every,
	}, deps, spk.handler())
	spk.client = client

	runDone := make(chan error, 1)
	threading.GoSafe(func() {
		runDone <- client.Run(ctx)
	})

	if err := client.StartCapture(); err != nil {
		return err
	}

	for i, samples := range utterances {
		turn, err := spk.speak(ctx, samples)
		if err != nil {
			client.Close()
			<-runDone
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		logx.Infow("本轮完成",
			logx.Field("turn", turn.Index),
			logx.Field("model", string(client.Model())),
			logx.Field("responseTime", turn.ResponseTime.Milliseconds()))
	}

	_ = client.StopCapture()
	_ = client.Disconnect()
	client.Close()
	<-runDone

	report, err := json.MarshalIndent(tracker.Report(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(report))
	return nil
}
