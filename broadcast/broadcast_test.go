package broadcast_test

import (
	"os"
	"time"

	"github.com/ke4ahr/pacsatd/broadcast"
	"github.com/ke4ahr/pacsatd/pfh"
	"github.com/ke4ahr/pacsatd/radio"
	"github.com/ke4ahr/pacsatd/store"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("directory broadcast", func() {
	It("emits one PID 0xBD frame per file, newest-first, paced at least 500ms apart", func() {
		dir, err := os.MkdirTemp("", "pacsat-bcast-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		st, err := store.Open(dir, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		defer st.Close()

		for _, name := range []string{"FILE0", "FILE1", "FILE2"} {
			_, err := st.AddFile("G0K8KA-0", pfh.PFH{Name: name, Ext: "TXT"}, []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(1100 * time.Millisecond)
		}

		mock := radio.NewMock()
		sched := broadcast.NewScheduler(st, mock, 0, "GROUND-1", time.Hour)

		start := time.Now()
		sched.SweepDirectory()
		elapsed := time.Since(start)

		sent := mock.Sent()
		Expect(sent).To(HaveLen(3))
		for _, f := range sent {
			Expect(f.PID).To(Equal(radio.PIDDirectory))
		}

		var decoded []string
		for _, f := range sent {
			hdr, err := pfh.Decode(f.Payload)
			Expect(err).NotTo(HaveOccurred())
			decoded = append(decoded, hdr.Name)
		}
		Expect(decoded).To(Equal([]string{"FILE2", "FILE1", "FILE0"}))
		Expect(elapsed).To(BeNumerically(">=", 1*time.Second))
	})
})
