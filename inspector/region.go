// SPDX-License-Identifier: GPL-2.0-only

package inspector

import (
	"strings"

	"github.com/MatthiasValvekens/xhci-abi/xhci"
	"github.com/efficientgo/core/errors"
	"k8s.io/apimachinery/pkg/util/validation"
)

// RegionKind selects the record layout a Region is decoded with.
type RegionKind string

const (
	KindTRBs          RegionKind = "trbs"
	KindERST          RegionKind = "erst"
	KindDeviceContext RegionKind = "device-context"
	KindInputContext  RegionKind = "input-context"
)

var knownKinds = []RegionKind{KindTRBs, KindERST, KindDeviceContext, KindInputContext}

// Region is a run of Count consecutive records of one kind in guest
// memory.
type Region struct {
	Name    string     `json:"name"`
	Kind    RegionKind `json:"kind"`
	Address uint64     `json:"address"`
	Count   int        `json:"count"`
}

// recordSize returns the stride between records of kind k.
func (k RegionKind) recordSize() int {
	switch k {
	case KindTRBs:
		return xhci.TRBSize
	case KindERST:
		return xhci.EventRingSegmentTableEntrySize
	case KindDeviceContext:
		return xhci.DeviceContextSize
	case KindInputContext:
		return xhci.InputContextSize
	default:
		return 0
	}
}

// Validate checks r before it is scanned. Names end up as metric label
// values, so they must be DNS-1123 labels.
func (r *Region) Validate() error {
	if errs := validation.IsDNS1123Label(r.Name); len(errs) > 0 {
		return errors.Newf("invalid region name %q: %s", r.Name, strings.Join(errs, ", "))
	}
	if r.Kind.recordSize() == 0 {
		kinds := make([]string, len(knownKinds))
		for i, k := range knownKinds {
			kinds[i] = string(k)
		}
		return errors.Newf("region %s: unknown kind %q; possible values are: %s", r.Name, r.Kind, strings.Join(kinds, ", "))
	}
	if r.Count <= 0 {
		return errors.Newf("region %s: count must be positive, got %d", r.Name, r.Count)
	}
	if uint64(r.Count) > ^r.Address/uint64(r.Kind.recordSize()) {
		return errors.Newf("region %s: %d records at 0x%x overflow the address space", r.Name, r.Count, r.Address)
	}
	return nil
}
