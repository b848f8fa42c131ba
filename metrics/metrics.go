// Package metrics contains all application-logic metrics
package metrics

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

var (
	opportunitiesFound = metrics.NewCounter("arb_opportunities_found_total")
	tradesExecuted     = metrics.NewCounter("arb_trades_executed_total")
	tradesFailed       = metrics.NewCounter("arb_trades_failed_total")
	gasGated           = metrics.NewCounter("arb_gas_gated_total")
	loopErrors         = metrics.NewCounter("arb_loop_errors_total")
	profitTotal        = metrics.NewFloatCounter("arb_profit_total")
)

func IncOpportunitiesFound(n int) {
	opportunitiesFound.Add(n)
}

func IncTradesExecuted() {
	tradesExecuted.Inc()
}

func IncTradesFailed() {
	tradesFailed.Inc()
}

func IncGasGated() {
	gasGated.Inc()
}

func IncLoopErrors() {
	loopErrors.Inc()
}

func AddProfit(v float64) {
	profitTotal.Add(v)
}

func IncValidationRejected(reason string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`arb_validation_rejected_total{reason=%q}`, reason)).Inc()
}

func IncVenueQuoteFailure(venue string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`arb_venue_quote_failures_total{venue=%q}`, venue)).Inc()
}

func RecordScanDuration(ms int64) {
	metrics.GetOrCreateHistogram("arb_scan_duration_milliseconds").Update(float64(ms))
}

func RecordRelayCallDuration(ms int64) {
	metrics.GetOrCreateHistogram("arb_relay_call_duration_milliseconds").Update(float64(ms))
}
