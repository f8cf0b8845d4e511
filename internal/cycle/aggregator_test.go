package cycle_test

import (
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/record"
)

var thresholds = cycle.Thresholds{
	PressureField:     "P",
	DisplacementField: "D",
	MinMaxField:       "T",
	PressureThreshold: 101,
}

func sample(p, d, t float32) string {
	return fmt.Sprintf("P;%g;D;%g;T;%g", p, d, t)
}

// armedLines gera n linhas com deslocamento d e campo monitorado alternando
// entre lo e hi
func armedLines(n int, d, lo, hi float32) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t := lo
		if i%2 == 1 {
			t = hi
		}
		lines = append(lines, sample(50, d, t))
	}
	return lines
}

func feedAll(agg *cycle.Aggregator, lines []string) {
	for _, l := range lines {
		Expect(agg.Feed(l)).To(Succeed())
	}
}

func armed() *cycle.Aggregator {
	agg := cycle.NewAggregator(thresholds, cycle.Options{})
	feedAll(agg, []string{
		sample(90, 0, 0),
		sample(101, 0, 0),
		sample(105, 2.5, 0),
	})
	Expect(agg.State()).To(Equal(cycle.Armed))
	Expect(agg.Last()).To(Equal(float32(2.5)))
	return agg
}

var _ = Describe("Aggregator", func() {
	Context("while seeking", func() {
		It("should stay seeking until pressure is strictly above the threshold", func() {
			agg := cycle.NewAggregator(thresholds, cycle.Options{})

			feedAll(agg, []string{sample(100, 1, 1), sample(101, 1, 1)})
			Expect(agg.State()).To(Equal(cycle.Seeking))

			Expect(agg.Feed(sample(101.5, -4, 1))).To(Succeed())
			Expect(agg.State()).To(Equal(cycle.Armed))
			Expect(agg.Last()).To(Equal(float32(-4)))
		})

		It("should not require the displacement field below the threshold", func() {
			agg := cycle.NewAggregator(thresholds, cycle.Options{})

			Expect(agg.Feed("P;12")).To(Succeed())
			Expect(agg.State()).To(Equal(cycle.Seeking))
		})

		It("should not observe the arming line", func() {
			agg := armed()

			Expect(agg.Samples()).To(Equal(0))
			Expect(agg.Current().IsEmpty()).To(BeTrue())
		})

		It("should fail with the line number when pressure is missing", func() {
			_, err := cycle.Aggregate(strings.NewReader(
				sample(90, 1, 1)+"\nD;1;T;1\n"), thresholds, cycle.Options{})

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, record.ErrMissingField)).To(BeTrue())

			var parseErr *cycle.ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Line).To(Equal(2))
			Expect(err.Error()).To(ContainSubstring("linha 2"))
			Expect(err.Error()).To(ContainSubstring(`"P"`))
		})
	})

	Context("while armed", func() {
		It("should commit a long cycle with its extremum and sample count", func() {
			agg := armed()

			feedAll(agg, armedLines(199, 1.0, -1, 3))
			Expect(agg.Dataset().Len()).To(Equal(0))
			Expect(agg.Samples()).To(Equal(199))

			Expect(agg.Feed(sample(50, -0.5, 0))).To(Succeed())

			ds := agg.Dataset()
			Expect(ds.Len()).To(Equal(1))
			entry, ok := ds.Get(1)
			Expect(ok).To(BeTrue())
			Expect(entry.Index).To(Equal(1))
			Expect(entry.Extremum.Min).To(Equal(float32(-1)))
			Expect(entry.Extremum.Max).To(Equal(float32(3)))
			Expect(entry.Samples).To(Equal(200))
		})

		It("should start from an empty extremum, not from zero", func() {
			agg := armed()
			Expect(agg.Current().IsEmpty()).To(BeTrue())

			feedAll(agg, armedLines(4, 1.0, 5, 8))
			Expect(agg.Current().Min).To(Equal(float32(5)))
			Expect(agg.Current().Max).To(Equal(float32(8)))
		})

		It("should reset the counter to three and empty the extremum after a crossing", func() {
			agg := armed()
			feedAll(agg, armedLines(160, 1.0, -1, 3))
			Expect(agg.Feed(sample(50, -1, 0))).To(Succeed())

			Expect(agg.Samples()).To(Equal(cycle.CarrySamples))
			Expect(agg.Current().IsEmpty()).To(BeTrue())
		})

		It("should discard a short cycle and start the next one empty", func() {
			agg := armed()

			feedAll(agg, armedLines(10, 1.0, -100, 100))
			Expect(agg.Feed(sample(50, -1, 0))).To(Succeed())

			Expect(agg.Dataset().Len()).To(Equal(0))
			Expect(agg.Discarded()).To(Equal(1))
			Expect(agg.Samples()).To(Equal(cycle.CarrySamples))
			Expect(agg.Current().IsEmpty()).To(BeTrue())

			feedAll(agg, armedLines(200, 1.0, 5, 5))
			Expect(agg.Feed(sample(50, -1, 6))).To(Succeed())

			entry, ok := agg.Dataset().Get(1)
			Expect(ok).To(BeTrue())
			Expect(entry.Extremum.Min).To(Equal(float32(5)))
			Expect(entry.Extremum.Max).To(Equal(float32(6)))
			Expect(entry.Samples).To(Equal(cycle.CarrySamples + 201))
		})

		It("should reject a cycle of exactly 150 samples", func() {
			agg := armed()

			feedAll(agg, armedLines(149, 1.0, 0, 1))
			Expect(agg.Feed(sample(50, -1, 0))).To(Succeed())
			Expect(agg.Dataset().Len()).To(Equal(0))

			agg = armed()
			feedAll(agg, armedLines(150, 1.0, 0, 1))
			Expect(agg.Feed(sample(50, -1, 0))).To(Succeed())
			Expect(agg.Dataset().Len()).To(Equal(1))
			entry, _ := agg.Dataset().Last()
			Expect(entry.Samples).To(Equal(151))
		})

		It("should treat zero as positive and negative zero as negative", func() {
			agg := cycle.NewAggregator(thresholds, cycle.Options{})
			Expect(agg.Feed(sample(200, 0, 0))).To(Succeed())

			feedAll(agg, armedLines(160, 0, 0, 1))
			Expect(agg.Feed("P;50;D;-0;T;1")).To(Succeed())

			Expect(agg.Dataset().Len()).To(Equal(1))
		})

		It("should not detect a crossing from negative to positive", func() {
			agg := cycle.NewAggregator(thresholds, cycle.Options{})
			Expect(agg.Feed(sample(200, -1, 0))).To(Succeed())

			feedAll(agg, armedLines(300, -1, 0, 1))
			feedAll(agg, armedLines(300, 1, 0, 1))

			Expect(agg.Dataset().Len()).To(Equal(0))
			Expect(agg.Discarded()).To(Equal(0))
			Expect(agg.Samples()).To(Equal(600))
		})

		It("should never consult pressure again once armed", func() {
			agg := armed()

			Expect(agg.Feed("D;1;T;2")).To(Succeed())
			Expect(agg.Samples()).To(Equal(1))
		})

		It("should fail when the tracked field is malformed", func() {
			agg := armed()

			err := agg.Feed("P;50;D;1;T;abc")
			Expect(errors.Is(err, record.ErrMalformedValue)).To(BeTrue())

			var parseErr *cycle.ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Line).To(Equal(4))

			Expect(agg.Feed(sample(50, 1, 1))).To(MatchError(err))
			_, finishErr := agg.Finish()
			Expect(finishErr).To(MatchError(err))
		})

		It("should fail when the displacement value is truncated", func() {
			agg := armed()

			err := agg.Feed("T;1;D")
			Expect(errors.Is(err, record.ErrTruncatedLine)).To(BeTrue())
		})
	})

	It("should number committed cycles 1..N regardless of noise", func() {
		var lines []string
		lines = append(lines, sample(150, 1, 0))

		lengths := []int{200, 20, 180, 5, 5, 400, 149, 151}
		for _, n := range lengths {
			lines = append(lines, armedLines(n, 1, -2, 2)...)
			lines = append(lines, sample(50, -1, 0))
		}

		var seen []cycle.Entry
		ds, err := cycle.Aggregate(strings.NewReader(strings.Join(lines, "\n")), thresholds,
			cycle.Options{OnCycle: func(e cycle.Entry) { seen = append(seen, e) }})
		Expect(err).NotTo(HaveOccurred())

		Expect(ds.Keys()).To(Equal([]int{1, 2, 3, 4, 5}))
		for _, e := range ds.Entries() {
			Expect(e.Samples).To(BeNumerically(">", cycle.MinCycleSamples))
		}
		Expect(seen).To(Equal(ds.Entries()))

		// primeiro ciclo conta desde o armamento, os seguintes carregam 3
		Expect(ds.Entries()[0].Samples).To(Equal(201))
		Expect(ds.Entries()[1].Samples).To(Equal(cycle.CarrySamples + 181))
	})

	It("should discard the partial cycle at end of stream", func() {
		input := strings.Join(append([]string{sample(150, 1, 0)}, armedLines(500, 1, 0, 9)...), "\n")

		ds, err := cycle.Aggregate(strings.NewReader(input), thresholds, cycle.Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(0))
	})

	It("should accept CRLF line endings", func() {
		lines := append([]string{sample(150, 1, 0)}, armedLines(200, 1, 0, 9)...)
		lines = append(lines, sample(50, -1, 0))

		ds, err := cycle.Aggregate(strings.NewReader(strings.Join(lines, "\r\n")+"\r\n"),
			thresholds, cycle.Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(1))
	})

	It("should report progress every total/20 lines", func() {
		lines := armedLines(100, 1, 0, 0)
		var reported []int

		_, err := cycle.Aggregate(strings.NewReader(strings.Join(lines, "\n")), thresholds,
			cycle.Options{
				TotalLines: 100,
				OnProgress: func(line, total int) {
					Expect(total).To(Equal(100))
					reported = append(reported, line)
				},
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(reported).To(HaveLen(21))
		Expect(reported[0]).To(Equal(5))
		Expect(reported[19]).To(Equal(100))
		Expect(reported[20]).To(Equal(100))
	})

	It("should report every line when there are fewer than 20", func() {
		calls := 0
		_, err := cycle.Aggregate(strings.NewReader(strings.Join(armedLines(3, 1, 0, 0), "\n")),
			thresholds, cycle.Options{TotalLines: 3, OnProgress: func(int, int) { calls++ }})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(4))
	})
})
