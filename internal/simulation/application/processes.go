package application

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
	"linesim/internal/observability/metrics"
	simulation "linesim/internal/simulation/domain"
	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
)

func (e *Engine) productionTick(ctx context.Context) error {
	snap := e.active.Snapshot()
	rate := simulation.ProductionRate(e.cfg.BaseRate, snap.Count)

	e.mu.Lock()
	e.productionRate = rate
	e.totalProduction += float64(rate) / 3600
	total := e.totalProduction
	e.mu.Unlock()

	state := simulation.MachineState(snap.Count, snap.Faults, rate)
	e.logWrite("production", e.tree.SetMany(ctx, []tags.Write{
		tags.W(catalog.MMASpeed, tags.Int(int64(rate))),
		tags.W(catalog.MMATotalProduction, tags.Int(int64(total))),
		tags.W(catalog.MMAState, tags.String(state)),
	}))

	// Alarm-derived FAULT and WARNING never reach the line-level label.
	if state == catalog.StateRunning || state == catalog.StateStopped {
		if _, err := e.gate.WriteBackground(ctx, state); err != nil {
			e.logWrite("production", err)
		}
	}
	metrics.SetProduction(rate, total)
	return nil
}

func (e *Engine) replayTick(rnd simulation.Rand) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if len(e.sequences) > 0 && rnd.Float64() < e.cfg.SequenceProbability {
			if err := e.replaySequence(ctx, e.sequences[rnd.Intn(len(e.sequences))]); err != nil {
				return err
			}
		}

		if _, _, err := e.active.ClearRandom(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logWrite("replay", err)
		}

		if len(e.pool) > 0 {
			if err := e.activate(ctx, e.pool[rnd.Intn(len(e.pool))]); err != nil {
				return err
			}
		}

		snap := e.active.Snapshot()
		e.logWrite("replay", e.tree.SetMany(ctx, []tags.Write{
			tags.W(catalog.MMAActiveAlarms, tags.Int(int64(snap.Count))),
			tags.W(catalog.MMAWarningCount, tags.Int(int64(snap.Warnings))),
			tags.W(catalog.MMAFaultCount, tags.Int(int64(snap.Faults))),
		}))
		metrics.SetActiveAlarms(snap.Count, snap.Warnings, snap.Faults)
		return nil
	}
}

func (e *Engine) replaySequence(ctx context.Context, sequence []alarms.Alarm) error {
	members := sequence
	if e.cfg.SequenceMembers > 0 && len(members) > e.cfg.SequenceMembers {
		members = members[:e.cfg.SequenceMembers]
	}
	e.logger.Debug("replaying alarm sequence", zap.Int("length", len(sequence)), zap.Int("members", len(members)))
	for i, alarm := range members {
		if err := e.activate(ctx, alarm); err != nil {
			return err
		}
		if i < len(members)-1 {
			if err := e.clock.Sleep(ctx, e.cfg.SequenceMemberDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// activate returns only errors that should stop the tick.
func (e *Engine) activate(ctx context.Context, alarm alarms.Alarm) error {
	_, _, err := e.active.Activate(ctx, alarm)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrEngineStopped) {
		return err
	}
	e.logWrite("replay", err)
	return nil
}

func (e *Engine) metricsTick(rnd simulation.Rand) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		snap := e.active.Snapshot()
		rate, _ := e.Production()
		eff := simulation.ComputeEffectiveness(snap.Count, snap.Faults, rate, e.cfg.BaseRate).Percent()

		temperature := simulation.Round(simulation.NominalTemperature+simulation.TemperatureNoise.Draw(rnd), 1)
		pressure := simulation.Round(simulation.NominalPressure+simulation.PressureNoise.Draw(rnd), 1)

		e.logWrite("metrics", e.tree.SetMany(ctx, []tags.Write{
			tags.W(catalog.ProcessAvailability, tags.Float(eff.Availability)),
			tags.W(catalog.ProcessPerformance, tags.Float(eff.Performance)),
			tags.W(catalog.ProcessQuality, tags.Float(eff.Quality)),
			tags.W(catalog.ProcessOEE, tags.Float(eff.OEE)),
			tags.W(catalog.MMATemperature, tags.Float(temperature)),
			tags.W(catalog.MMAPressure, tags.Float(pressure)),
		}))
		metrics.SetEffectiveness(eff.Availability, eff.Performance, eff.Quality, eff.OEE)
		return nil
	}
}

func (e *Engine) noiseTick(rnd simulation.Rand) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		writes := make([]tags.Write, 0, len(e.noiseTags))
		for _, def := range e.noiseTags {
			writes = append(writes, tags.W(def.Path, simulation.NoiseValue(leafName(def.Path), def.Value.Kind(), rnd)))
		}
		e.logWrite("noise", e.tree.SetMany(ctx, writes))
		return nil
	}
}

func leafName(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
