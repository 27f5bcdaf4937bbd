package accelerator

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// DeviceInfo describes the CPU that training runs on
type DeviceInfo struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	GOMAXPROCS    int
	AVX2          bool
	FMA3          bool
}

// Device returns a description of the CPU that training runs on
func Device() DeviceInfo {
	return DeviceInfo{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		FMA3:          cpuid.CPU.Supports(cpuid.FMA3),
	}
}

// String implements the fmt.Stringer interface
func (d DeviceInfo) String() string {
	brand := d.Brand
	if brand == "" {
		brand = "unknown cpu"
	}
	return fmt.Sprintf("%v (%v physical / %v logical cores, GOMAXPROCS=%v, "+
		"avx2=%v, fma3=%v)", brand, d.PhysicalCores, d.LogicalCores,
		d.GOMAXPROCS, d.AVX2, d.FMA3)
}
