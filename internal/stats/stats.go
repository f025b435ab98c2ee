// internal/stats - скользящая статистика по потоку ударов сердца
package stats

// Ёмкость скользящих окон: статистика считается по последним
// windowSize значениям
const windowSize = 1000

// QualityThreshold порог "хорошего" ИК-сигнала
const QualityThreshold = 50000

// RateStats сводка по удерживаемым значениям BPM
type RateStats struct {
	Count int
	Avg   float64
	Min   float64
	Max   float64
}

// Accumulator собирает значения BPM и амплитуды ИК-сигнала одной сессии.
// Невалидные (неположительные) BPM не учитываются в статистике,
// амплитуда принимается всегда. Не потокобезопасен — синхронизацию
// обеспечивает владеющая сессия.
type Accumulator struct {
	rates      *Ring[float64]
	amplitudes *Ring[int]
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		rates:      NewRing[float64](windowSize),
		amplitudes: NewRing[int](windowSize),
	}
}

// ObserveRate принимает значение BPM, только если оно положительное
func (a *Accumulator) ObserveRate(bpm float64) {
	if bpm > 0 {
		a.rates.Push(bpm)
	}
}

// ObserveAmplitude принимает значение амплитуды безусловно
func (a *Accumulator) ObserveAmplitude(ir int) {
	a.amplitudes.Push(ir)
}

// RateCount возвращает количество удерживаемых значений BPM
func (a *Accumulator) RateCount() int {
	return a.rates.Len()
}

// Snapshot возвращает статистику по текущему окну BPM.
// ok=false означает, что валидных значений ещё не было — деления
// на ноль не происходит никогда.
func (a *Accumulator) Snapshot() (RateStats, bool) {
	if a.rates.Len() == 0 {
		return RateStats{}, false
	}

	s := RateStats{Count: a.rates.Len()}
	first := true
	sum := 0.0
	a.rates.Do(func(v float64) {
		sum += v
		if first {
			s.Min, s.Max = v, v
			first = false
			return
		}
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	})
	s.Avg = sum / float64(s.Count)
	return s, true
}

// AmplitudeMean среднее по текущему окну амплитуд, 0 если пусто
func (a *Accumulator) AmplitudeMean() float64 {
	if a.amplitudes.Len() == 0 {
		return 0
	}
	sum := 0.0
	a.amplitudes.Do(func(v int) {
		sum += float64(v)
	})
	return sum / float64(a.amplitudes.Len())
}

// QualityRatio доля амплитуд строго выше threshold, в процентах [0,100].
// Пустое окно даёт 0.
func (a *Accumulator) QualityRatio(threshold int) float64 {
	if a.amplitudes.Len() == 0 {
		return 0
	}
	good := 0
	a.amplitudes.Do(func(v int) {
		if v > threshold {
			good++
		}
	})
	return float64(good) / float64(a.amplitudes.Len()) * 100
}
