package core

import (
	"sync"
	"sync/atomic"
)

type MetricsState struct {
	DescriptorTableBinds atomic.Uint64
	RootDescriptorBinds  atomic.Uint64
	RootConstantUploads  atomic.Uint64
	RootSignatureBinds   atomic.Uint64
	ShaderTableRebuilds  atomic.Uint64
	ShaderTableSkips     atomic.Uint64
	SpecializationHits   atomic.Uint64
	SpecializationMisses atomic.Uint64
}

// MetricsSnapshot is a plain copy of the counters.
type MetricsSnapshot struct {
	DescriptorTableBinds uint64
	RootDescriptorBinds  uint64
	RootConstantUploads  uint64
	RootSignatureBinds   uint64
	ShaderTableRebuilds  uint64
	ShaderTableSkips     uint64
	SpecializationHits   uint64
	SpecializationMisses uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func metrics() *MetricsState {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{}
	})
	return metricsState
}

func MetricsDescriptorTableBind() { metrics().DescriptorTableBinds.Add(1) }
func MetricsRootDescriptorBind()  { metrics().RootDescriptorBinds.Add(1) }
func MetricsRootConstantUpload()  { metrics().RootConstantUploads.Add(1) }
func MetricsRootSignatureBind()   { metrics().RootSignatureBinds.Add(1) }
func MetricsShaderTableRebuild()  { metrics().ShaderTableRebuilds.Add(1) }
func MetricsShaderTableSkip()     { metrics().ShaderTableSkips.Add(1) }

func MetricsSpecialization(hit bool) {
	if hit {
		metrics().SpecializationHits.Add(1)
		return
	}
	metrics().SpecializationMisses.Add(1)
}

func MetricsRead() MetricsSnapshot {
	m := metrics()
	return MetricsSnapshot{
		DescriptorTableBinds: m.DescriptorTableBinds.Load(),
		RootDescriptorBinds:  m.RootDescriptorBinds.Load(),
		RootConstantUploads:  m.RootConstantUploads.Load(),
		RootSignatureBinds:   m.RootSignatureBinds.Load(),
		ShaderTableRebuilds:  m.ShaderTableRebuilds.Load(),
		ShaderTableSkips:     m.ShaderTableSkips.Load(),
		SpecializationHits:   m.SpecializationHits.Load(),
		SpecializationMisses: m.SpecializationMisses.Load(),
	}
}

func MetricsReset() {
	m := metrics()
	m.DescriptorTableBinds.Store(0)
	m.RootDescriptorBinds.Store(0)
	m.RootConstantUploads.Store(0)
	m.RootSignatureBinds.Store(0)
	m.ShaderTableRebuilds.Store(0)
	m.ShaderTableSkips.Store(0)
	m.SpecializationHits.Store(0)
	m.SpecializationMisses.Store(0)
}
