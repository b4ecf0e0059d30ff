package metric

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FileCollector reports the checkpoint file as it exists on disk at
// scrape time, independent of what this process believes it wrote.
type FileCollector struct {
	path string
	now  func() time.Time

	sizeDesc   *prometheus.Desc
	ageDesc    *prometheus.Desc
	existsDesc *prometheus.Desc
}

// NewFileCollector creates a collector for the checkpoint file at path.
func NewFileCollector(path string) *FileCollector {
	labels := prometheus.Labels{"path": path}
	return &FileCollector{
		path: path,
		now:  time.Now,
		sizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "checkpoint", "file_size_bytes"),
			"Size of the checkpoint file on disk",
			nil, labels),
		ageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "checkpoint", "file_age_seconds"),
			"Seconds since the checkpoint file was last replaced",
			nil, labels),
		existsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "checkpoint", "file_exists"),
			"1 if the checkpoint file exists, 0 otherwise",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *FileCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeDesc
	ch <- c.ageDesc
	ch <- c.existsDesc
}

// Collect implements prometheus.Collector.
func (c *FileCollector) Collect(ch chan<- prometheus.Metric) {
	st, err := os.Stat(c.path)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.existsDesc, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.existsDesc, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.sizeDesc, prometheus.GaugeValue, float64(st.Size()))
	ch <- prometheus.MustNewConstMetric(c.ageDesc, prometheus.GaugeValue, c.now().Sub(st.ModTime()).Seconds())
}
