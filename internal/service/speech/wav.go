package speech

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// PCMFormat describes little-endian signed 16-bit PCM.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

// DefaultPCMFormat is what the browser bridge streams: 16 kHz mono.
var DefaultPCMFormat = PCMFormat{SampleRate: 16000, Channels: 1}

func (f PCMFormat) bytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the play time of n bytes of PCM.
func (f PCMFormat) Duration(n int) time.Duration {
	bps := f.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// EncodeWAV wraps raw PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, f PCMFormat) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.bytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV returns the PCM payload and format of a canonical WAV file.
// ok is false when data does not carry a RIFF/WAVE header.
func DecodeWAV(data []byte) (pcm []byte, f PCMFormat, ok bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, PCMFormat{}, false
	}
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch id {
		case "fmt ":
			if body+8 <= len(data) {
				f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			}
		case "data":
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			return data[body:end], f, f.SampleRate > 0
		}
		pos = body + size + size%2
	}
	return nil, PCMFormat{}, false
}

// PCMLevel returns the mean absolute amplitude of 16-bit samples scaled to
// 0-255.
func PCMLevel(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		sum += math.Abs(float64(s))
	}
	return sum / float64(n) / 32768 * 255
}
