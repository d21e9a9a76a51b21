package stats

import (
	"time"

	"github.com/golang/glog"
	"github.com/lufia/iostat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DiskCollector polls per-drive I/O counters when the filesystem extent
// backend is active (spec §6's "location directory" mode), the gauge
// counterpart of the request metrics above. In-memory mode has no disk to
// report, so callers simply never start this collector.
type DiskCollector struct {
	bytesRead    *prometheus.GaugeVec
	bytesWritten *prometheus.GaugeVec
}

// NewDiskCollector registers the disk gauges against the same registry as
// Stats.
func (s *Stats) NewDiskCollector() *DiskCollector {
	return &DiskCollector{
		bytesRead: promauto.With(s.registry).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "blobemu",
			Name:      "disk_bytes_read",
			Help:      "Cumulative bytes read per drive, as reported by the OS.",
		}, []string{"drive"}),
		bytesWritten: promauto.With(s.registry).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "blobemu",
			Name:      "disk_bytes_written",
			Help:      "Cumulative bytes written per drive, as reported by the OS.",
		}, []string{"drive"}),
	}
}

// Run polls disk stats every interval until stop is closed (stop is a plain
// channel rather than context.Context to keep this collector's lifecycle
// independent of any one request).
func (d *DiskCollector) Run(stop <-chan struct{}, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.poll()
		case <-stop:
			return
		}
	}
}

func (d *DiskCollector) poll() {
	drives, err := iostat.ReadDiskStats()
	if err != nil {
		glog.Warningf("stats: read disk stats: %v", err)
		return
	}
	for _, drv := range drives {
		d.bytesRead.WithLabelValues(drv.Name).Set(float64(drv.BytesRead))
		d.bytesWritten.WithLabelValues(drv.Name).Set(float64(drv.BytesWritten))
	}
}
