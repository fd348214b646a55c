package catalog

// seedVeils is the built-in registry. IDs follow the tier numbering:
// classical 1-25, ML/AI 26-75, signal 76-100, robotics 101-125,
// vision 126-150, crypto 301-350, first canon 401-413, quantum 501-550.
// Opcodes are derived (ID + 0x100) at construction.
var seedVeils = []Veil{
	{ID: 1, Name: "PID Controller", Tier: TierClassical, Category: "Control Theory",
		Description: "Three-term feedback control", Equation: "Kp·e + Ki∫e + Kd·de/dt",
		Tags: []string{"control", "linear"}},
	{ID: 2, Name: "Kalman Filter", Tier: TierClassical, Category: "Control Theory",
		Description: "Optimal state estimation", Equation: "x̂' = Ax̂ + K(y - Cx̂)",
		Tags: []string{"control", "linear"}},
	{ID: 12, Name: "Lyapunov Stability", Tier: TierClassical, Category: "Control Theory",
		Description: "Nonlinear stability analysis", Equation: "dV/dt < 0",
		Tags: []string{"control", "linear"}},
	{ID: 18, Name: "MPC", Tier: TierClassical, Category: "Control Theory",
		Description: "Model predictive control", Equation: "min J = Σ(||ŷ||² + ||u||²)",
		Tags: []string{"control", "linear"}},
	{ID: 26, Name: "Gradient Descent", Tier: TierMLAI, Category: "Machine Learning",
		Description: "First-order optimization", Equation: "θ←θ-α∇L",
		Tags: []string{"ml", "optimization"}},
	{ID: 28, Name: "Adam Optimizer", Tier: TierMLAI, Category: "Machine Learning",
		Description: "Adaptive moment estimation", Equation: "m←βm+(1-β)∇L",
		Tags: []string{"ml", "optimization"}},
	{ID: 40, Name: "Attention", Tier: TierMLAI, Category: "Machine Learning",
		Description: "Query-key-value mechanism", Equation: "A(Q,K,V)=softmax(QKᵀ/√d)V",
		Tags: []string{"ml", "deep-learning"}},
	{ID: 41, Name: "Transformer", Tier: TierMLAI, Category: "Machine Learning",
		Description: "Self-attention blocks", Equation: "MultiHead(Q,K,V) → FFN",
		Tags: []string{"ml", "deep-learning"}},
	{ID: 60, Name: "Q-Learning", Tier: TierMLAI, Category: "Machine Learning",
		Description: "RL value function", Equation: "Q(s,a)←Q(s,a)+α(r+γmaxQ-Q)",
		Tags: []string{"ml", "reinforcement"}},
	{ID: 76, Name: "FFT", Tier: TierSignal, Category: "Signal Processing",
		Description: "Fast Fourier transform", Equation: "X[k]=Σx[n]e^{-j2πkn/N}",
		Tags: []string{"signal", "spectral"}},
	{ID: 80, Name: "Wavelet Transform", Tier: TierSignal, Category: "Signal Processing",
		Description: "Time-frequency decomposition", Equation: "W(a,b)=∫x(t)ψ((t-b)/a)dt",
		Tags: []string{"signal", "spectral"}},
	{ID: 101, Name: "Forward Kinematics", Tier: TierRobotics, Category: "Robotics",
		Description: "Joint angles to pose", Equation: "T = ΠA_i(θ_i)",
		Tags: []string{"robotics", "kinematics"}},
	{ID: 105, Name: "Inverse Kinematics", Tier: TierRobotics, Category: "Robotics",
		Description: "Pose to joint angles", Equation: "θ = f⁻¹(T)",
		Tags: []string{"robotics", "kinematics"}},
	{ID: 126, Name: "Edge Detection", Tier: TierVision, Category: "Computer Vision",
		Description: "Gradient-based edges", Equation: "|∇I| > τ",
		Tags: []string{"vision"}},
	{ID: 130, Name: "Optical Flow", Tier: TierVision, Category: "Computer Vision",
		Description: "Apparent motion field", Equation: "I_x u + I_y v + I_t = 0",
		Tags: []string{"vision", "motion"}},
	{ID: 301, Name: "SHA-256", Tier: TierCrypto, Category: "Cryptography",
		Description: "Merkle-Damgård hash", Equation: "H = compress(H, block)",
		Tags: []string{"crypto", "hash"}},
	{ID: 310, Name: "Merkle Tree", Tier: TierCrypto, Category: "Cryptography",
		Description: "Hash tree commitment", Equation: "root = H(H(L)||H(R))",
		Tags: []string{"crypto", "hash"}},
	{ID: 401, Name: "Aṣẹ Conservation", Tier: TierFirstCanon, Category: "Sacred Science",
		Description: "Value neither created nor destroyed without work", Equation: "ΔAṣẹ = ∫work dt",
		Tags: []string{"canon", "economics"}},
	{ID: 407, Name: "Ouroboros Reversal", Tier: TierFirstCanon, Category: "Sacred Science",
		Description: "Low-quality mint consumes itself", Equation: "q < 0.5 ⇒ revert",
		Tags: []string{"canon", "economics"}},
	{ID: 501, Name: "Qubit State", Tier: TierQuantum, Category: "Quantum",
		Description: "Two-level superposition", Equation: "|ψ⟩ = α|0⟩ + β|1⟩",
		Tags: []string{"quantum"}},
	{ID: 510, Name: "Quantum Entanglement", Tier: TierQuantum, Category: "Quantum",
		Description: "Non-separable joint state", Equation: "|Φ+⟩ = (|00⟩+|11⟩)/√2",
		Tags: []string{"quantum"}},
}
