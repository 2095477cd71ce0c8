package ingest

import (
	"errors"

	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

// routeError classifies a backend failure, logs it with its location,
// and asks the host to quit. Without a durable queue, carrying on past
// a failed write would leave silent gaps; a restart is the recovery
// path. Decode failures never come through here, they are logged and
// skipped at the call site.
func (in *Ingester) routeError(desc string, err error) {
	if err == nil {
		return
	}

	var connErr *elastic.ConnectionError
	var codeErr *elastic.ResponseCodeError
	var bulkErr *elastic.BulkFailError

	switch {
	case errors.As(err, &connErr):
		logger.Error("elasticsearch connection error, %s, %v", desc, err)
		metrics.BackendErrors.WithLabelValues("connection").Inc()
	case errors.As(err, &codeErr):
		logger.Error("elasticsearch exception, %s, %v", desc, err)
		metrics.BackendErrors.WithLabelValues("response_code").Inc()
	case errors.As(err, &bulkErr):
		logger.Error("elasticsearch exception, %s, %v", desc, err)
		metrics.BackendErrors.WithLabelValues("bulk").Inc()
	default:
		logger.Error("elasticsearch unknown exception, %s, %v", desc, err)
		metrics.BackendErrors.WithLabelValues("unknown").Inc()
	}

	in.requestQuit()
}
