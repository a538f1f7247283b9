// SPDX-License-Identifier: GPL-2.0-only

package inspector

import (
	"context"
	baseerrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/MatthiasValvekens/xhci-abi/xhci"
	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Record is one decoded structure found in a region.
type Record struct {
	Region string
	Kind   RegionKind
	Index  int
	GPA    uint64
	// Value is an xhci.Variant, *xhci.DeviceContext, *xhci.InputContext or
	// xhci.EventRingSegmentTableEntry, depending on Kind. It is nil when
	// Err is set.
	Value any
	// Raw is set for TRB records.
	Raw *xhci.AddressedTRB
	Err error
}

// Report is the outcome of one Scan.
type Report struct {
	Time    time.Time
	Records []Record
	// Unknown counts TRBs with an unrecognized type code.
	Unknown int
}

// Inspector decodes configured regions of guest memory.
type Inspector struct {
	mem     xhci.GuestMemory
	regions []Region
	logger  log.Logger
	health  *health.Server

	mu   sync.Mutex
	last *Report

	// metrics
	trbsDecoded *prometheus.CounterVec
	unknownTRBs *prometheus.CounterVec
	scanErrors  prometheus.Counter
	lastScan    prometheus.Gauge
}

// NewInspector validates regions and registers the inspector metrics with
// reg, prefixed with xhci_inspector_.
func NewInspector(mem xhci.GuestMemory, regions []Region, logger log.Logger, reg prometheus.Registerer) (*Inspector, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	seen := make(map[string]struct{}, len(regions))
	for i := range regions {
		if err := regions[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[regions[i].Name]; dup {
			return nil, errors.Newf("region %s is defined more than once", regions[i].Name)
		}
		seen[regions[i].Name] = struct{}{}
	}

	in := &Inspector{
		mem:     mem,
		regions: regions,
		logger:  logger,
		health:  health.NewServer(),
		trbsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trbs_decoded_total",
			Help: "The number of TRBs decoded, by region and TRB type.",
		}, []string{"region", "type"}),
		unknownTRBs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unknown_trbs_total",
			Help: "The number of TRBs with an unrecognized type code, by region.",
		}, []string{"region"}),
		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_errors_total",
			Help: "The number of region reads that failed.",
		}),
		lastScan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_scan_timestamp_seconds",
			Help: "The time the last scan finished, in seconds since the epoch.",
		}),
	}
	in.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	if reg != nil {
		prometheus.WrapRegistererWithPrefix("xhci_inspector_", reg).MustRegister(
			in.trbsDecoded, in.unknownTRBs, in.scanErrors, in.lastScan,
		)
	}

	_ = logger.Log("msg", "Initialized inspector", "regions", len(regions))
	return in, nil
}

// Scan reads and decodes every region once. Unknown TRB types are
// recorded and counted but do not fail the scan; unreadable regions do,
// after the remaining regions have been scanned.
func (in *Inspector) Scan() (*Report, error) {
	report := &Report{}
	var errs []error
	for _, r := range in.regions {
		records, err := in.scanRegion(r)
		if err != nil {
			in.scanErrors.Inc()
			_ = level.Error(in.logger).Log("msg", "failed to scan region", "region", r.Name, "err", err)
			errs = append(errs, errors.Wrapf(err, "region %s", r.Name))
			continue
		}
		for _, rec := range records {
			if rec.Err != nil {
				report.Unknown++
			}
		}
		report.Records = append(report.Records, records...)
	}
	report.Time = time.Now()
	in.lastScan.Set(float64(report.Time.UnixNano()) / 1e9)

	err := baseerrors.Join(errs...)
	if err != nil {
		in.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	} else {
		in.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	in.mu.Lock()
	in.last = report
	in.mu.Unlock()
	return report, err
}

// LastReport returns the report of the most recent Scan, or nil.
func (in *Inspector) LastReport() *Report {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last
}

func (in *Inspector) scanRegion(r Region) ([]Record, error) {
	logger := log.With(in.logger, "region", r.Name, "kind", r.Kind)

	switch r.Kind {
	case KindTRBs:
		trbs, err := xhci.ReadTRBs(in.mem, r.Address, r.Count)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(trbs))
		for i := range trbs {
			records[i] = in.decodeTRB(logger, r, i, trbs[i])
		}
		return records, nil

	case KindERST:
		entries, err := xhci.ReadEventRingSegmentTable(in.mem, r.Address, r.Count)
		if err != nil {
			return nil, err
		}
		records := make([]Record, len(entries))
		for i, e := range entries {
			gpa := r.Address + uint64(i*xhci.EventRingSegmentTableEntrySize)
			_ = level.Debug(logger).Log("msg", "decoded segment table entry", "gpa", hex(gpa), "entry", e)
			records[i] = Record{Region: r.Name, Kind: r.Kind, Index: i, GPA: gpa, Value: e}
		}
		return records, nil

	case KindDeviceContext:
		records := make([]Record, r.Count)
		for i := range records {
			gpa := r.Address + uint64(i*xhci.DeviceContextSize)
			d, err := xhci.ReadDeviceContext(in.mem, gpa)
			if err != nil {
				return nil, err
			}
			_ = level.Debug(logger).Log(
				"msg", "decoded device context", "gpa", hex(gpa),
				"slot_state", d.Slot.SlotState, "address", d.Slot.USBDeviceAddress,
				"context_entries", d.Slot.ContextEntries, "ep0_state", d.Endpoint(1).EndpointState,
			)
			records[i] = Record{Region: r.Name, Kind: r.Kind, Index: i, GPA: gpa, Value: d}
		}
		return records, nil

	case KindInputContext:
		records := make([]Record, r.Count)
		for i := range records {
			gpa := r.Address + uint64(i*xhci.InputContextSize)
			c, err := xhci.ReadInputContext(in.mem, gpa)
			if err != nil {
				return nil, err
			}
			_ = level.Debug(logger).Log(
				"msg", "decoded input context", "gpa", hex(gpa),
				"add", fmt.Sprintf("%#08x", c.Control.AddContextFlags),
				"drop", fmt.Sprintf("%#08x", c.Control.DropContextFlags),
			)
			records[i] = Record{Region: r.Name, Kind: r.Kind, Index: i, GPA: gpa, Value: c}
		}
		return records, nil
	}
	return nil, errors.Newf("unknown region kind %q", r.Kind)
}

func (in *Inspector) decodeTRB(logger log.Logger, r Region, i int, a xhci.AddressedTRB) Record {
	rec := Record{Region: r.Name, Kind: r.Kind, Index: i, GPA: a.GPA, Raw: &a}
	v, err := xhci.Decode(a.TRB)
	if err != nil {
		in.unknownTRBs.WithLabelValues(r.Name).Inc()
		_ = level.Warn(logger).Log("msg", "skipping TRB", "gpa", hex(a.GPA), "type", a.TRB.Type(), "err", err)
		rec.Err = err
		return rec
	}
	in.trbsDecoded.WithLabelValues(r.Name, v.Type().String()).Inc()
	_ = level.Debug(logger).Log("msg", "decoded TRB", "gpa", hex(a.GPA), "type", v.Type(), "cycle", a.TRB.Cycle(), "trb", fmt.Sprintf("%+v", v))
	rec.Value = v
	return rec
}

func hex(gpa uint64) string {
	return fmt.Sprintf("0x%x", gpa)
}

// AddScanJob scans immediately and then every interval until the group is
// interrupted. Scan errors are logged and do not stop the job.
func (in *Inspector) AddScanJob(g *run.Group, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	g.Add(func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if _, err := in.Scan(); err != nil {
				_ = level.Warn(in.logger).Log("msg", "scan incomplete", "err", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
	}, func(error) {
		cancel()
	})
}
