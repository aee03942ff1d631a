package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
)

// fileMicrophone 以实时速度回放 WAV 文件中的 PCM，模拟麦克风输入
type fileMicrophone struct {
	pcm    []byte
	format speech.PCMFormat
	frame  int
}

func newFileMicrophone(path string, frame time.Duration) (*fileMicrophone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取音频文件失败: %w", err)
	}
	pcm, format, ok := speech.DecodeWAV(data)
	if !ok {
		return nil, fmt.Errorf("%s 不是 16 位 PCM WAV 文件", path)
	}
	frameBytes := int(int64(format.SampleRate*format.Channels*2) * int64(frame) / int64(time.Second))
	if frameBytes < 2 {
		frameBytes = 2
	}
	frameBytes -= frameBytes % 2
	return &fileMicrophone{pcm: pcm, format: format, frame: frameBytes}, nil
}

func (m *fileMicrophone) RequestPermission(ctx context.Context) error { return nil }

func (m *fileMicrophone) Record(ctx context.Context) (speech.Recording, error) {
	return &fileRecording{mic: m, started: time.Now()}, nil
}

type fileRecording struct {
	mic     *fileMicrophone
	started time.Time
}

// offset 返回按墙钟时间已经“录到”的字节数
func (r *fileRecording) offset() int {
	elapsed := time.Since(r.started)
	n := int(int64(r.mic.format.SampleRate*r.mic.format.Channels*2) * int64(elapsed) / int64(time.Second))
	n -= n % 2
	if n > len(r.mic.pcm) {
		n = len(r.mic.pcm)
	}
	return n
}

func (r *fileRecording) Level() float64 {
	end := r.offset()
	if end >= len(r.mic.pcm) {
		return 0
	}
	start := end - r.mic.frame
	if start < 0 {
		start = 0
	}
	return speech.PCMLevel(r.mic.pcm[start:end])
}

func (r *fileRecording) Stop() (speech.Clip, error) {
	pcm := r.mic.pcm[:r.offset()]
	return speech.Clip{
		Data:        speech.EncodeWAV(pcm, r.mic.format),
		ContentType: "audio/wav",
		Filename:    "recording.wav",
		Duration:    r.mic.format.Duration(len(pcm)),
	}, nil
}

func (r *fileRecording) Close() error { return nil }

// filePlayer 把合成音频依次写入输出文件
type filePlayer struct {
	prefix string

	mu sync.Mutex
	n  int
}

func (p *filePlayer) Play(ctx context.Context, audio speechmodel.Audio) error {
	p.mu.Lock()
	p.n++
	path := fmt.Sprintf("%s-%d%s", p.prefix, p.n, extension(audio.ContentType))
	p.mu.Unlock()

	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return fmt.Errorf("写入音频文件失败: %w", err)
	}
	logf("已写入合成音频 %s (%d bytes)", path, len(audio.Data))
	return nil
}

func extension(contentType string) string {
	switch contentType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}
