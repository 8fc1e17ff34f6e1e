package train

import (
	"math"
	"math/rand"

	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

// This file implements the sequence regressor itself: a stack of GRU layers
// followed by a scalar dense head, with inverted dropout between the
// recurrent layers, an MSE objective, Adam updates, and early stopping on
// validation loss. It is deliberately dependency-free plain Go; inference
// (Predict) is fully deterministic so repeated imputations of the same
// window under the same weights reproduce the same value.

// matrix is a row-major weight matrix.
type matrix [][]float64

// newMatrix allocates a zeroed rows x cols matrix.
func newMatrix(rows, cols int) matrix {
	m := make(matrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// GRULayer holds the parameters of one gated recurrent layer.
// W* multiply the layer input, U* the previous hidden state.
type GRULayer struct {
	InputSize  int     `json:"input_size"`
	HiddenSize int     `json:"hidden_size"`
	Wz         matrix  `json:"wz"`
	Wr         matrix  `json:"wr"`
	Wh         matrix  `json:"wh"`
	Uz         matrix  `json:"uz"`
	Ur         matrix  `json:"ur"`
	Uh         matrix  `json:"uh"`
	Bz         []float64 `json:"bz"`
	Br         []float64 `json:"br"`
	Bh         []float64 `json:"bh"`
}

// Network is the full regressor: stacked GRU layers and a dense output head.
type Network struct {
	Layers  []*GRULayer `json:"layers"`
	WOut    []float64   `json:"w_out"`
	BOut    float64     `json:"b_out"`
	Dropout float64     `json:"dropout"`

	rng *rand.Rand
}

// NewNetwork creates a network with the given hidden layer sizes (outermost
// first) reading a scalar input sequence. seed fixes initialization and
// dropout; a zero seed is replaced by an arbitrary one by the caller.
func NewNetwork(hidden []int, dropout float64, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	n := &Network{Dropout: dropout, rng: rng}

	inputSize := 1
	for _, h := range hidden {
		n.Layers = append(n.Layers, newGRULayer(inputSize, h, rng))
		inputSize = h
	}
	n.WOut = make([]float64, inputSize)
	limit := 1.0 / math.Sqrt(float64(inputSize))
	for i := range n.WOut {
		n.WOut[i] = (2*rng.Float64() - 1) * limit
	}
	return n
}

// Reseed attaches an RNG after deserialization. Only training uses it.
func (n *Network) Reseed(seed int64) {
	n.rng = rand.New(rand.NewSource(seed))
}

// newGRULayer initializes a layer with uniform weights scaled by fan-in.
func newGRULayer(inputSize, hiddenSize int, rng *rand.Rand) *GRULayer {
	init := func(rows, cols int) matrix {
		limit := 1.0 / math.Sqrt(float64(cols))
		m := newMatrix(rows, cols)
		for i := range m {
			for j := range m[i] {
				m[i][j] = (2*rng.Float64() - 1) * limit
			}
		}
		return m
	}
	return &GRULayer{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Wz:         init(hiddenSize, inputSize),
		Wr:         init(hiddenSize, inputSize),
		Wh:         init(hiddenSize, inputSize),
		Uz:         init(hiddenSize, hiddenSize),
		Ur:         init(hiddenSize, hiddenSize),
		Uh:         init(hiddenSize, hiddenSize),
		Bz:         make([]float64, hiddenSize),
		Br:         make([]float64, hiddenSize),
		Bh:         make([]float64, hiddenSize),
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// matTVec computes mᵀv.
func matTVec(m matrix, v []float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, len(m[0]))
	for i := range m {
		vi := v[i]
		for j := range m[i] {
			out[j] += m[i][j] * vi
		}
	}
	return out
}

// stepCache holds what the backward pass needs for one timestep.
type stepCache struct {
	x     []float64
	hPrev []float64
	z     []float64
	r     []float64
	c     []float64
	rh    []float64 // r ∘ hPrev
	h     []float64
}

// step runs one GRU timestep.
//
//	z = σ(Wz x + Uz h⁻ + bz)
//	r = σ(Wr x + Ur h⁻ + br)
//	c = tanh(Wh x + Uh (r∘h⁻) + bh)
//	h = (1−z)∘h⁻ + z∘c
func (l *GRULayer) step(x, hPrev []float64) stepCache {
	n := l.HiddenSize
	z := make([]float64, n)
	r := make([]float64, n)
	rh := make([]float64, n)
	c := make([]float64, n)
	h := make([]float64, n)

	for i := 0; i < n; i++ {
		z[i] = sigmoid(dot(l.Wz[i], x) + dot(l.Uz[i], hPrev) + l.Bz[i])
		r[i] = sigmoid(dot(l.Wr[i], x) + dot(l.Ur[i], hPrev) + l.Br[i])
	}
	for i := 0; i < n; i++ {
		rh[i] = r[i] * hPrev[i]
	}
	for i := 0; i < n; i++ {
		c[i] = math.Tanh(dot(l.Wh[i], x) + dot(l.Uh[i], rh) + l.Bh[i])
		h[i] = (1-z[i])*hPrev[i] + z[i]*c[i]
	}
	return stepCache{x: x, hPrev: hPrev, z: z, r: r, c: c, rh: rh, h: h}
}

// forwardCache holds the state of one full forward pass.
type forwardCache struct {
	// steps[l][t] is the cache of layer l at timestep t.
	steps [][]stepCache
	// masks[l][t] is the dropout mask applied to layer l's output at t
	// before it feeds layer l+1. Nil when not training.
	masks [][][]float64
	// out is the final prediction.
	out float64
}

// forward runs the whole sequence through the network. With training set,
// inverted dropout masks are sampled between recurrent layers.
func (n *Network) forward(seq []float64, training bool) forwardCache {
	T := len(seq)
	cache := forwardCache{
		steps: make([][]stepCache, len(n.Layers)),
		masks: make([][][]float64, len(n.Layers)),
	}

	// Layer inputs start as the scalar sequence.
	inputs := make([][]float64, T)
	for t, v := range seq {
		inputs[t] = []float64{v}
	}

	for li, layer := range n.Layers {
		cache.steps[li] = make([]stepCache, T)
		h := make([]float64, layer.HiddenSize)
		outputs := make([][]float64, T)
		for t := 0; t < T; t++ {
			sc := layer.step(inputs[t], h)
			cache.steps[li][t] = sc
			h = sc.h
			outputs[t] = sc.h
		}

		// Dropout between recurrent layers only, never after the last one.
		if training && n.Dropout > 0 && li < len(n.Layers)-1 {
			keep := 1 - n.Dropout
			cache.masks[li] = make([][]float64, T)
			for t := 0; t < T; t++ {
				mask := make([]float64, layer.HiddenSize)
				dropped := make([]float64, layer.HiddenSize)
				for i := range mask {
					if n.rng.Float64() < keep {
						mask[i] = 1 / keep
					}
					dropped[i] = outputs[t][i] * mask[i]
				}
				cache.masks[li][t] = mask
				outputs[t] = dropped
			}
		}
		inputs = outputs
	}

	last := inputs[T-1]
	cache.out = dot(n.WOut, last) + n.BOut
	return cache
}

// Predict runs deterministic inference (no dropout) on a scaled sequence.
func (n *Network) Predict(seq []float64) float64 {
	return n.forward(seq, false).out
}

// gruGrads mirrors the parameter shapes of one layer.
type gruGrads struct {
	Wz, Wr, Wh matrix
	Uz, Ur, Uh matrix
	Bz, Br, Bh []float64
}

func newGRUGrads(l *GRULayer) *gruGrads {
	return &gruGrads{
		Wz: newMatrix(l.HiddenSize, l.InputSize),
		Wr: newMatrix(l.HiddenSize, l.InputSize),
		Wh: newMatrix(l.HiddenSize, l.InputSize),
		Uz: newMatrix(l.HiddenSize, l.HiddenSize),
		Ur: newMatrix(l.HiddenSize, l.HiddenSize),
		Uh: newMatrix(l.HiddenSize, l.HiddenSize),
		Bz: make([]float64, l.HiddenSize),
		Br: make([]float64, l.HiddenSize),
		Bh: make([]float64, l.HiddenSize),
	}
}

// netGrads mirrors every parameter tensor of the network.
type netGrads struct {
	layers []*gruGrads
	wOut   []float64
	bOut   float64
}

func (n *Network) newGrads() *netGrads {
	g := &netGrads{wOut: make([]float64, len(n.WOut))}
	for _, l := range n.Layers {
		g.layers = append(g.layers, newGRUGrads(l))
	}
	return g
}

// backwardStep backpropagates through one timestep of one layer.
// dh is the gradient arriving at h_t; it returns the gradients flowing to
// the layer input x_t and to h_{t-1}, accumulating parameter gradients in g.
func backwardStep(l *GRULayer, g *gruGrads, sc stepCache, dh []float64) (dx, dhPrev []float64) {
	n := l.HiddenSize
	daZ := make([]float64, n)
	daR := make([]float64, n)
	daC := make([]float64, n)
	dhPrev = make([]float64, n)

	for i := 0; i < n; i++ {
		dz := dh[i] * (sc.c[i] - sc.hPrev[i])
		dc := dh[i] * sc.z[i]
		dhPrev[i] = dh[i] * (1 - sc.z[i])
		daC[i] = dc * (1 - sc.c[i]*sc.c[i])
		daZ[i] = dz * sc.z[i] * (1 - sc.z[i])
	}

	// Candidate path: through Uh the gradient reaches r ∘ hPrev.
	drh := matTVec(l.Uh, daC)
	for i := 0; i < n; i++ {
		dr := drh[i] * sc.hPrev[i]
		dhPrev[i] += drh[i] * sc.r[i]
		daR[i] = dr * sc.r[i] * (1 - sc.r[i])
	}

	accumulate := func(w matrix, da, in []float64) {
		for i := range da {
			di := da[i]
			for j := range in {
				w[i][j] += di * in[j]
			}
		}
	}
	accumulate(g.Wz, daZ, sc.x)
	accumulate(g.Wr, daR, sc.x)
	accumulate(g.Wh, daC, sc.x)
	accumulate(g.Uz, daZ, sc.hPrev)
	accumulate(g.Ur, daR, sc.hPrev)
	accumulate(g.Uh, daC, sc.rh)
	for i := 0; i < n; i++ {
		g.Bz[i] += daZ[i]
		g.Br[i] += daR[i]
		g.Bh[i] += daC[i]
	}

	dx = make([]float64, l.InputSize)
	for _, pair := range []struct {
		w  matrix
		da []float64
	}{{l.Wz, daZ}, {l.Wr, daR}, {l.Wh, daC}} {
		part := matTVec(pair.w, pair.da)
		for j := range dx {
			dx[j] += part[j]
		}
	}
	uzPart := matTVec(l.Uz, daZ)
	urPart := matTVec(l.Ur, daR)
	for i := 0; i < n; i++ {
		dhPrev[i] += uzPart[i] + urPart[i]
	}
	return dx, dhPrev
}

// backward computes gradients for one sample given its forward cache and the
// squared-error target.
func (n *Network) backward(cache forwardCache, target float64) *netGrads {
	g := n.newGrads()
	T := len(cache.steps[0])
	topIdx := len(n.Layers) - 1

	dy := cache.out - target
	lastHidden := cache.steps[topIdx][T-1].h
	for i := range n.WOut {
		g.wOut[i] = dy * lastHidden[i]
	}
	g.bOut = dy

	// dhSeq[t] is the gradient arriving at the current layer's output at t.
	dhSeq := make([][]float64, T)
	for t := range dhSeq {
		dhSeq[t] = make([]float64, n.Layers[topIdx].HiddenSize)
	}
	for i := range n.WOut {
		dhSeq[T-1][i] = dy * n.WOut[i]
	}

	for li := topIdx; li >= 0; li-- {
		layer := n.Layers[li]
		dxSeq := make([][]float64, T)
		dhNext := make([]float64, layer.HiddenSize)
		for t := T - 1; t >= 0; t-- {
			dh := make([]float64, layer.HiddenSize)
			for i := range dh {
				dh[i] = dhSeq[t][i] + dhNext[i]
			}
			dx, dhPrev := backwardStep(layer, g.layers[li], cache.steps[li][t], dh)
			dxSeq[t] = dx
			dhNext = dhPrev
		}

		if li == 0 {
			break
		}
		// The input gradients of this layer become the output gradients of
		// the layer below, passed back through its dropout mask.
		below := n.Layers[li-1]
		next := make([][]float64, T)
		for t := 0; t < T; t++ {
			next[t] = make([]float64, below.HiddenSize)
			for i := range next[t] {
				v := dxSeq[t][i]
				if cache.masks[li-1] != nil {
					v *= cache.masks[li-1][t][i]
				}
				next[t][i] = v
			}
		}
		dhSeq = next
	}
	return g
}

// adamState carries Adam's first and second moment estimates.
type adamState struct {
	m, v *netGrads
	t    int
}

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
	// gradClip bounds each gradient component to keep BPTT stable.
	gradClip = 5.0
)

// applyAdam performs one Adam update of every parameter from the gradients.
func (n *Network) applyAdam(g *netGrads, st *adamState, lr float64) {
	st.t++
	c1 := 1 - math.Pow(adamBeta1, float64(st.t))
	c2 := 1 - math.Pow(adamBeta2, float64(st.t))

	update := func(param, grad, m, v []float64) {
		for i := range param {
			gi := grad[i]
			if gi > gradClip {
				gi = gradClip
			} else if gi < -gradClip {
				gi = -gradClip
			}
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*gi
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*gi*gi
			param[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
	updateMat := func(param, grad, m, v matrix) {
		for i := range param {
			update(param[i], grad[i], m[i], v[i])
		}
	}

	for li, l := range n.Layers {
		gl, ml, vl := g.layers[li], st.m.layers[li], st.v.layers[li]
		updateMat(l.Wz, gl.Wz, ml.Wz, vl.Wz)
		updateMat(l.Wr, gl.Wr, ml.Wr, vl.Wr)
		updateMat(l.Wh, gl.Wh, ml.Wh, vl.Wh)
		updateMat(l.Uz, gl.Uz, ml.Uz, vl.Uz)
		updateMat(l.Ur, gl.Ur, ml.Ur, vl.Ur)
		updateMat(l.Uh, gl.Uh, ml.Uh, vl.Uh)
		update(l.Bz, gl.Bz, ml.Bz, vl.Bz)
		update(l.Br, gl.Br, ml.Br, vl.Br)
		update(l.Bh, gl.Bh, ml.Bh, vl.Bh)
	}

	// Dense head. bOut is a single scalar, updated inline.
	outGrad := []float64{g.bOut}
	outParam := []float64{n.BOut}
	outM := []float64{st.m.bOut}
	outV := []float64{st.v.bOut}
	update(n.WOut, g.wOut, st.m.wOut, st.v.wOut)
	update(outParam, outGrad, outM, outV)
	n.BOut = outParam[0]
	st.m.bOut = outM[0]
	st.v.bOut = outV[0]
}

// FitConfig holds the optimizer and early-stopping settings.
type FitConfig struct {
	LearningRate float64
	MaxEpochs    int
	Patience     int
}

// FitReport summarizes a completed fit.
type FitReport struct {
	Epochs      int
	BestValLoss float64
}

// Fit trains the network on the given windows with Adam and early stopping
// on validation loss. The best-performing weights are restored before
// returning. Numerical divergence fails with TrainingFailed.
func (n *Network) Fit(trainX [][]float64, trainY []float64, valX [][]float64, valY []float64, cfg FitConfig) (*FitReport, error) {
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(1))
	}
	st := &adamState{m: n.newGrads(), v: n.newGrads()}

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	best := math.Inf(1)
	bestSnapshot := n.snapshot()
	sinceBest := 0
	epochs := 0

	for epoch := 0; epoch < cfg.MaxEpochs; epoch++ {
		epochs = epoch + 1
		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, idx := range order {
			cache := n.forward(trainX[idx], true)
			if math.IsNaN(cache.out) || math.IsInf(cache.out, 0) {
				return nil, exception.NewEngineErrorf(exception.KindTrainingFailed, "network",
					"forward pass diverged at epoch %d", epoch+1)
			}
			g := n.backward(cache, trainY[idx])
			n.applyAdam(g, st, cfg.LearningRate)
		}

		valLoss := n.meanSquaredError(valX, valY)
		if math.IsNaN(valLoss) || math.IsInf(valLoss, 0) {
			return nil, exception.NewEngineErrorf(exception.KindTrainingFailed, "network",
				"validation loss diverged at epoch %d", epoch+1)
		}

		if valLoss < best {
			best = valLoss
			bestSnapshot = n.snapshot()
			sinceBest = 0
		} else {
			sinceBest++
			if sinceBest >= cfg.Patience {
				break
			}
		}
	}

	n.restore(bestSnapshot)
	return &FitReport{Epochs: epochs, BestValLoss: best}, nil
}

// meanSquaredError evaluates the network on a window set without dropout.
func (n *Network) meanSquaredError(xs [][]float64, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for i := range xs {
		d := n.Predict(xs[i]) - ys[i]
		sum += d * d
	}
	return sum / float64(len(xs))
}

// snapshot deep-copies every parameter tensor.
func (n *Network) snapshot() *netGrads {
	s := n.newGrads()
	copyVec := func(dst, src []float64) { copy(dst, src) }
	copyMat := func(dst, src matrix) {
		for i := range src {
			copy(dst[i], src[i])
		}
	}
	for li, l := range n.Layers {
		sl := s.layers[li]
		copyMat(sl.Wz, l.Wz)
		copyMat(sl.Wr, l.Wr)
		copyMat(sl.Wh, l.Wh)
		copyMat(sl.Uz, l.Uz)
		copyMat(sl.Ur, l.Ur)
		copyMat(sl.Uh, l.Uh)
		copyVec(sl.Bz, l.Bz)
		copyVec(sl.Br, l.Br)
		copyVec(sl.Bh, l.Bh)
	}
	copyVec(s.wOut, n.WOut)
	s.bOut = n.BOut
	return s
}

// restore writes a snapshot back into the network parameters.
func (n *Network) restore(s *netGrads) {
	copyMat := func(dst, src matrix) {
		for i := range src {
			copy(dst[i], src[i])
		}
	}
	for li, l := range n.Layers {
		sl := s.layers[li]
		copyMat(l.Wz, sl.Wz)
		copyMat(l.Wr, sl.Wr)
		copyMat(l.Wh, sl.Wh)
		copyMat(l.Uz, sl.Uz)
		copyMat(l.Ur, sl.Ur)
		copyMat(l.Uh, sl.Uh)
		copy(l.Bz, sl.Bz)
		copy(l.Br, sl.Br)
		copy(l.Bh, sl.Bh)
	}
	copy(n.WOut, s.wOut)
	n.BOut = s.bOut
}
