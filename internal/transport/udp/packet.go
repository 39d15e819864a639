// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"

	"moodscope/internal/analysis"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field              | Data Type  | Size (Bytes) | Description                  |
|--------------------|------------|--------------|------------------------------|
| Sequence Number    | uint32     | 4            | Monotonically increasing     |
| Timestamp          | int64      | 8            | Nanoseconds since epoch      |
| Mood               | uint8      | 1            | 0 calm, 1 happy, 2 energetic,|
|                    |            |              | 3 melancholic                |
| Confidence         | float32    | 4            | Mood confidence              |
| Dominant Frequency | float32    | 4            | Hz                           |
| Features           | [6]float32 | 24           | energy, rms, zcr, centroid,  |
|                    |            |              | flatness, rolloff            |
+-----------------------------------------------------------------------------+
*/

// PacketSize is the fixed length of an encoded packet.
const PacketSize = 4 + 8 + 1 + 4 + 4 + 6*4

// Packet is a decoded datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Result    analysis.AnalysisResult
}

// AppendPacket appends the encoding of r to dst and returns the extended
// slice. It does not allocate when dst has PacketSize spare capacity.
func AppendPacket(dst []byte, seq uint32, timestamp int64, r analysis.AnalysisResult) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = append(dst, byte(r.Mood))
	dst = appendFloat32(dst, r.MoodConfidence)
	dst = appendFloat32(dst, r.DominantFrequency)

	f := r.Features
	for _, v := range [...]float64{f.Energy, f.RMS, f.ZCR, f.SpectralCentroid, f.SpectralFlatness, f.SpectralRolloff} {
		dst = appendFloat32(dst, v)
	}
	return dst
}

func appendFloat32(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
}

// ParsePacket decodes one datagram.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, fmt.Errorf("packet is %d bytes, want %d", len(b), PacketSize)
	}

	var p Packet
	p.Sequence = binary.BigEndian.Uint32(b[0:4])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[4:12]))

	mood := analysis.Mood(b[12])
	if mood > analysis.Melancholic {
		return Packet{}, fmt.Errorf("unknown mood %d", b[12])
	}
	p.Result.Mood = mood

	off := 13
	next := func() float64 {
		v := math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		return float64(v)
	}
	p.Result.MoodConfidence = next()
	p.Result.DominantFrequency = next()
	p.Result.Features = analysis.FeatureSet{
		Energy:           next(),
		RMS:              next(),
		ZCR:              next(),
		SpectralCentroid: next(),
		SpectralFlatness: next(),
		SpectralRolloff:  next(),
	}
	return p, nil
}
