package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArchivedFiles tracks files added to run archives
	ArchivedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_archive_files_total",
			Help: "Total number of files bundled into run archives",
		},
	)

	// ArchivedBytes tracks the compressed size of finished archives
	ArchivedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_archive_bytes_total",
			Help: "Total compressed bytes written to run archives",
		},
	)
)
