package indicators

// VolumeRatio returns the rolling mean volume and volume / mean.
// The ratio is unavailable where the mean is unavailable or zero.
func VolumeRatio(volume []float64, period int) (ma, ratio Series) {
	ma = SMA(volume, period)
	ratio = unavailable(len(volume))
	for i, v := range volume {
		m, ok := ma.At(i)
		if !ok || m == 0 {
			continue
		}
		ratio[i] = v / m
	}
	return ma, ratio
}
