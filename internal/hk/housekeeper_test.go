package hk_test

import (
	"time"

	"github.com/ke4ahr/pacsatd/internal/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("housekeeper", func() {
	It("runs a registered job and reschedules it", func() {
		fired := make(chan struct{}, 4)
		hk.Reg("test-sweep", func() time.Duration {
			fired <- struct{}{}
			return 10 * time.Millisecond
		}, 10*time.Millisecond)

		Eventually(fired, time.Second).Should(Receive())
		Eventually(fired, time.Second).Should(Receive())

		hk.Unreg("test-sweep")
	})

	It("unregisters a job that returns UnregInterval", func() {
		fired := make(chan struct{}, 4)
		hk.Reg("one-shot", func() time.Duration {
			fired <- struct{}{}
			return hk.UnregInterval
		}, 10*time.Millisecond)

		Eventually(fired, time.Second).Should(Receive())
		Consistently(fired, 100*time.Millisecond).ShouldNot(Receive())
	})
})
