package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOffersMetricsRecordCall(t *testing.T) {
	errNotFound := errors.New("not found")
	classify := func(err error) string {
		return ErrorLabel(err, map[error]string{errNotFound: "not_found"})
	}
	m := Offers()

	before := testutil.ToFloat64(m.operations.WithLabelValues("cancelOffer", "not_found"))
	m.RecordCall("cancelOffer", errNotFound, classify, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("cancelOffer", "not_found")))

	before = testutil.ToFloat64(m.operations.WithLabelValues("createOffer", "success"))
	m.RecordCall("createOffer", nil, classify, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("createOffer", "success")))

	m.SetOpen(3)
	require.Equal(t, float64(3), testutil.ToFloat64(m.open))
}

func TestRPCMetricsObserve(t *testing.T) {
	m := RPCMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("escrow_getOffer", "-32041"))
	m.Observe("escrow_getOffer", -32041, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.errors.WithLabelValues("escrow_getOffer", "-32041")))
}
