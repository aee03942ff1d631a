package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/config"
	"github.com/zhouzirui/elera-assistant/console/internal/logging"
	"github.com/zhouzirui/elera-assistant/console/internal/service/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
)

func logf(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("无法加载 .env，改用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("配置加载失败")
	}
	logger := logging.Setup(cfg.Log)

	audioPath := flag.String("audio", "", "输入 WAV 文件路径 (16 位 PCM)")
	outPrefix := flag.String("out", "", "合成音频输出文件前缀 (默认 voiceloop-<时间戳>)")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	voice := flag.String("voice", "", "合成音色 ID，默认使用配置或语言推荐音色")
	welcome := flag.Bool("welcome", false, "先播放欢迎语")
	frame := flag.Duration("frame", 20*time.Millisecond, "电平采样窗口")
	timeout := flag.Duration("timeout", 2*time.Minute, "整轮超时时间")

	flag.Parse()

	if strings.TrimSpace(*audioPath) == "" {
		flag.Usage()
		log.Fatal().Msg("请通过 -audio 指定输入音频文件")
	}
	if *outPrefix == "" {
		*outPrefix = fmt.Sprintf("voiceloop-%d", time.Now().Unix())
	}

	mic, err := newFileMicrophone(*audioPath, *frame)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化文件麦克风失败")
	}

	api := apiclient.New(cfg.API, logger)
	chatSvc := chat.NewService(api, logger)
	identity := fmt.Sprintf("voiceloop-%d", time.Now().UnixNano())
	remote := speech.NewRemote(api, identity, cfg.API.UserName, chatSvc.SessionID)

	opts := speech.OptionsFromConfig(cfg.Voice, speech.NewCatalog(cfg.Voice))
	opts.Continuous = false
	opts.SkipWelcome = !*welcome
	if *language != "" {
		opts.Language = *language
	}
	if *voice != "" {
		opts.VoiceID = *voice
	}

	ctrl := speech.NewController(speech.Devices{
		Microphone:  mic,
		Transcriber: remote,
		Replier:     chatSvc,
		Synthesizer: remote,
		Player:      &filePlayer{prefix: *outPrefix},
	}, opts, logger)
	defer ctrl.Close()

	if *language != "" && *voice == "" {
		if err := ctrl.SetLanguage(*language); err != nil {
			log.Fatal().Err(err).Msg("语言代码无效")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	events, unsubscribe := ctrl.Subscribe(32)
	defer unsubscribe()

	st := ctrl.Status()
	logf("开始语音回合: audio=%s language=%s voice=%s", *audioPath, st.Language, st.VoiceID)
	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("启动语音回合失败")
	}

	if err := waitForIdle(ctx, events); err != nil {
		ctrl.Halt()
		log.Error().Err(err).Msg("语音回合未完成")
		os.Exit(1)
	}

	st = ctrl.Status()
	if st.LastError != "" {
		log.Error().Str("error", st.LastError).Msg("语音回合失败")
		os.Exit(1)
	}
	if st.VoiceLimitWarning {
		log.Warn().Str("voice_id", st.VoiceID).Msg("主音色额度不足，已改用备用音色")
	}
	logf("语音回合完成: transcript=%q reply=%q", st.LastTranscript, st.LastReply)
}

func waitForIdle(ctx context.Context, events <-chan speech.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch e.Type {
			case speech.EventState:
				logf("状态: %s", e.State)
				if e.State == speech.StateIdle {
					return nil
				}
			case speech.EventTranscript:
				logf("识别结果: %s", e.Text)
			case speech.EventReply:
				logf("助手回复: %s", e.Text)
			case speech.EventVoiceLimit:
				logf("音色额度不足，切换到 %s", e.VoiceID)
			case speech.EventError:
				logf("错误: %s", e.Error)
			}
		}
	}
}
