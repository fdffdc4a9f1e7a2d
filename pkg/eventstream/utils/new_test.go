package eventstreamutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/eventstream/kafka"
	"github.com/eduspark/portal/pkg/eventstream/nop"
	eventstreamutils "github.com/eduspark/portal/pkg/eventstream/utils"
)

var _ = Describe("NewPublisher", func() {
	It("returns the no-op publisher without brokers", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{Topic: "turns"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("returns a Kafka publisher when brokers are set", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			Brokers: []string{"localhost:9092"},
			Topic:   "eduspark.chat.turns",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires a topic for Kafka", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			Brokers: []string{"localhost:9092"},
		})
		Expect(err).To(MatchError("kafka topic is required"))
	})
})
