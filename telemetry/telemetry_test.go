package telemetry_test

import (
	"encoding/binary"

	"github.com/ke4ahr/pacsatd/radio"
	"github.com/ke4ahr/pacsatd/telemetry"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func wodFrame() []byte {
	b := make([]byte, 64)
	le := binary.LittleEndian
	le.PutUint16(b[0:2], 1234)  // 12.34V
	le.PutUint16(b[2:4], 56)    // 0.56A
	le.PutUint16(b[4:6], 100)
	le.PutUint16(b[6:8], 200)
	le.PutUint16(b[8:10], 300)
	le.PutUint16(b[10:12], uint16(int16(-55)))
	le.PutUint16(b[12:14], uint16(int16(200)))
	le.PutUint16(b[14:16], uint16(int16(150)))
	le.PutUint16(b[16:18], uint16(int16(-3000)))
	le.PutUint16(b[18:20], 550)
	le.PutUint32(b[20:24], 86400)
	le.PutUint16(b[24:26], 3)
	b[26] = 1
	return b
}

func realtimeFrame() []byte {
	b := make([]byte, 32)
	le := binary.LittleEndian
	le.PutUint16(b[0:2], 1200)
	le.PutUint16(b[2:4], 80)
	le.PutUint16(b[4:6], uint16(int16(350)))
	le.PutUint16(b[6:8], uint16(int16(-40)))
	le.PutUint16(b[8:10], 42)
	b[10] = 1
	return b
}

var _ = Describe("telemetry decoding", func() {
	It("decodes a WOD frame with scaled fields", func() {
		w, err := telemetry.DecodeWOD(wodFrame())
		Expect(err).NotTo(HaveOccurred())
		Expect(w.BatteryVoltage).To(BeNumerically("~", 12.34, 0.001))
		Expect(w.BatteryCurrent).To(BeNumerically("~", 0.56, 0.001))
		Expect(w.TempTransmitter).To(BeNumerically("~", -5.5, 0.001))
		Expect(w.UptimeSeconds).To(Equal(uint32(86400)))
		Expect(w.Reboots).To(Equal(uint16(3)))
		Expect(w.Mode).To(Equal(uint8(1)))
	})

	It("rejects a WOD frame shorter than 64 bytes", func() {
		_, err := telemetry.DecodeWOD(make([]byte, 63))
		Expect(err).To(MatchError(telemetry.ErrShortFrame))
	})

	It("decodes a realtime frame with scaled fields", func() {
		r, err := telemetry.DecodeRealtime(realtimeFrame())
		Expect(err).NotTo(HaveOccurred())
		Expect(r.BatteryVoltage).To(BeNumerically("~", 12.0, 0.001))
		Expect(r.TempPA).To(BeNumerically("~", 35.0, 0.001))
		Expect(r.RSSI).To(Equal(uint16(42)))
		Expect(r.ChannelActivity).To(Equal(uint8(1)))
	})

	It("rejects a realtime frame shorter than 32 bytes", func() {
		_, err := telemetry.DecodeRealtime(make([]byte, 31))
		Expect(err).To(MatchError(telemetry.ErrShortFrame))
	})

	It("tracks the latest frame of each kind via OnInbound and reports healthy", func() {
		st := telemetry.NewStatus()
		before := st.Summary()
		Expect(before.Healthy).To(BeFalse())

		st.OnInbound(radio.Frame{PID: radio.PIDWholeOrbit, Payload: wodFrame()})
		st.OnInbound(radio.Frame{PID: radio.PIDRealtime, Payload: realtimeFrame()})

		sum := st.Summary()
		Expect(sum.Healthy).To(BeTrue())
		Expect(sum.LastWOD).NotTo(BeNil())
		Expect(sum.LastRealtime).NotTo(BeNil())
	})

	It("ignores frames with an unrelated PID", func() {
		st := telemetry.NewStatus()
		st.OnInbound(radio.Frame{PID: radio.PIDFileChunk, Payload: wodFrame()})
		Expect(st.Summary().Healthy).To(BeFalse())
	})
})
