package export

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// RenderText gathers every metric registered on reg and encodes the result in
// the Prometheus text exposition format: a # HELP and # TYPE line per family
// followed by one line per label set.
//
// This is the on-demand query path for embedding hosts that want the same
// text the pull listener serves, without a network hop. It is safe to call
// concurrently with scrapes and with measurement traffic.
func RenderText(reg *prometheus.Registry) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("failed to encode metric family %q: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
