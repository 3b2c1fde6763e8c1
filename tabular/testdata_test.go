package tabular

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

var carColumns = []string{
	"year", "make", "model", "trim", "transmission", "condition",
	"odometer", "color", "interior", "saleyear", "years_on_sale", "sellingprice",
}

// carFrame generates listings whose price depends on year, odometer,
// condition and make but not on color or interior.
func carFrame(t testing.TB, n int, seed uint64) *Frame {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	makes := []string{"kia", "bmw", "ford", "toyota"}
	premium := map[string]float64{"kia": 0, "bmw": 8000, "ford": 1000, "toyota": 2000}
	colors := []string{"black", "white", "silver", "red", "blue"}

	rows := make([][]string, n)
	for i := range rows {
		year := 2000 + rng.IntN(15)
		mk := makes[rng.IntN(len(makes))]
		model := mk + "-" + strconv.Itoa(rng.IntN(30))
		trim := "t" + strconv.Itoa(rng.IntN(3))
		trans := "automatic"
		if rng.IntN(5) == 0 {
			trans = "manual"
		}
		cond := 1 + rng.IntN(49)
		odo := rng.IntN(200000)
		saleYear := 2015

		price := 1200*float64(year-2000) - 0.04*float64(odo) + 80*float64(cond) + premium[mk] + 3000
		price += rng.NormFloat64() * 150

		rows[i] = []string{
			strconv.Itoa(year), mk, model, trim, trans, strconv.Itoa(cond),
			strconv.Itoa(odo), colors[rng.IntN(len(colors))], colors[rng.IntN(2)],
			strconv.Itoa(saleYear), strconv.Itoa(saleYear - year),
			strconv.FormatFloat(price, 'f', 2, 64),
		}
	}
	f, err := NewFrame(carColumns, rows)
	require.NoError(t, err)
	return f
}
