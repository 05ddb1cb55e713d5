package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	coxMaxIterations = 50
	coxTolerance     = 1e-9
	// coxRidge 信息矩阵病态时加到对角线上的正则项
	coxRidge = 1e-8
)

// FitCoxPH 在队列上拟合 Cox 比例风险回归
//
// 协变量: premium 哑变量、activity_count、score、user_type 哑变量
// (以配置中的第一个类型为基准水平)。系数通过 Breslow 偏似然的
// Newton-Raphson 迭代求解, 标准误取负 Hessian 逆的对角线。
func (e *Engine) FitCoxPH(cohort *biz.Cohort) (*biz.CoxModel, error) {
	if cohort == nil || len(cohort.Records) == 0 {
		return nil, fmt.Errorf("cannot fit Cox model on an empty cohort")
	}

	names, x := coxDesignMatrix(cohort)
	p := len(names)
	n := len(cohort.Records)

	nEvents := cohort.ChurnedCount()
	if nEvents == 0 {
		return nil, fmt.Errorf("cannot fit Cox model: no events in cohort")
	}

	// 中心化协变量改善数值条件; Cox 偏似然对平移不变, 系数不受影响
	means := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			means[j] += x[i][j]
		}
		means[j] /= float64(n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x[i][j] -= means[j]
		}
	}

	// 按观测时长升序排序 (迭代时从尾部向前累积风险集)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return cohort.Records[order[a]].TimeObserved < cohort.Records[order[b]].TimeObserved
	})

	beta := make([]float64, p)
	var logLik float64
	converged := false
	iterations := 0

	for iter := 0; iter < coxMaxIterations; iter++ {
		iterations = iter + 1
		ll, grad, info := e.breslowDerivatives(cohort, order, x, beta)
		logLik = ll

		// Newton 步: info * step = grad
		step, err := solveNewtonStep(info, grad)
		if err != nil {
			return nil, fmt.Errorf("cox newton step failed at iteration %d: %w", iterations, err)
		}

		maxStep := 0.0
		for j := 0; j < p; j++ {
			beta[j] += step[j]
			if s := math.Abs(step[j]); s > maxStep {
				maxStep = s
			}
		}
		if maxStep < coxTolerance {
			converged = true
			break
		}
	}

	// 在收敛点重新计算信息矩阵求标准误
	_, _, info := e.breslowDerivatives(cohort, order, x, beta)
	se, err := standardErrors(info)
	if err != nil {
		return nil, fmt.Errorf("cox standard errors failed: %w", err)
	}

	model := &biz.CoxModel{
		LogLikelihood: logLik,
		Iterations:    iterations,
		Converged:     converged,
		NSubjects:     n,
		NEvents:       nEvents,
		Coefficients:  make([]biz.CoxCoefficient, p),
	}
	for j := 0; j < p; j++ {
		z := 0.0
		if se[j] > 0 {
			z = beta[j] / se[j]
		}
		model.Coefficients[j] = biz.CoxCoefficient{
			Name:        names[j],
			Coef:        beta[j],
			StdErr:      se[j],
			HazardRatio: math.Exp(beta[j]),
			Z:           z,
			PValue:      2 * distuv.UnitNormal.Survival(math.Abs(z)),
			CILower:     math.Exp(beta[j] - 1.96*se[j]),
			CIUpper:     math.Exp(beta[j] + 1.96*se[j]),
		}
	}

	if !converged {
		e.log.Warnf("Cox model did not converge within %d iterations", coxMaxIterations)
	}
	return model, nil
}

// coxDesignMatrix 构建回归设计矩阵 (premium 哑变量 + 数值协变量 + user_type 哑变量)
func coxDesignMatrix(cohort *biz.Cohort) ([]string, [][]float64) {
	// user_type 哑变量以配置顺序的第一个类型为基准
	baseline := ""
	var typeLevels []string
	for _, ut := range cohort.Params.UserTypes {
		if baseline == "" {
			baseline = ut.Label
			continue
		}
		typeLevels = append(typeLevels, ut.Label)
	}

	names := []string{"subscription_tier_premium", "activity_count", "score"}
	for _, lvl := range typeLevels {
		names = append(names, "user_type_"+lvl)
	}

	x := make([][]float64, len(cohort.Records))
	for i, r := range cohort.Records {
		row := make([]float64, len(names))
		if r.SubscriptionTier == constants.TierPremium {
			row[0] = 1
		}
		row[1] = float64(r.ActivityCount)
		row[2] = r.Score
		for k, lvl := range typeLevels {
			if r.UserType == lvl {
				row[3+k] = 1
			}
		}
		x[i] = row
	}
	return names, x
}

// breslowDerivatives 计算 Breslow 偏似然的对数似然、梯度和信息矩阵
//
// order 为按观测时长升序的下标; 从尾部向前扫描, 风险集的
// exp(xb)、x*exp(xb)、xx'*exp(xb) 累积和随扫描递增,
// 同一时刻的并列事件共享同一个风险集 (Breslow 处理)。
func (e *Engine) breslowDerivatives(cohort *biz.Cohort, order []int, x [][]float64, beta []float64) (float64, []float64, *mat.SymDense) {
	n := len(order)
	p := len(beta)

	s0 := 0.0
	s1 := make([]float64, p)
	s2 := make([]float64, p*p)

	logLik := 0.0
	grad := make([]float64, p)
	info := mat.NewSymDense(p, nil)

	i := n - 1
	for i >= 0 {
		t := cohort.Records[order[i]].TimeObserved

		// 该时刻的所有个体先全部进入风险集
		j := i
		for j >= 0 && cohort.Records[order[j]].TimeObserved == t {
			idx := order[j]
			eta := 0.0
			for k := 0; k < p; k++ {
				eta += x[idx][k] * beta[k]
			}
			w := math.Exp(eta)
			s0 += w
			for k := 0; k < p; k++ {
				s1[k] += w * x[idx][k]
				for l := 0; l <= k; l++ {
					s2[k*p+l] += w * x[idx][k] * x[idx][l]
				}
			}
			j--
		}

		// 再累计该时刻的事件贡献
		d := 0
		sumX := make([]float64, p)
		sumEta := 0.0
		for m := i; m > j; m-- {
			idx := order[m]
			if !cohort.Records[idx].Churned {
				continue
			}
			d++
			for k := 0; k < p; k++ {
				sumX[k] += x[idx][k]
				sumEta += x[idx][k] * beta[k]
			}
		}
		if d > 0 {
			fd := float64(d)
			logLik += sumEta - fd*math.Log(s0)
			for k := 0; k < p; k++ {
				grad[k] += sumX[k] - fd*s1[k]/s0
				for l := 0; l <= k; l++ {
					v := info.At(k, l) + fd*(s2[k*p+l]/s0-(s1[k]/s0)*(s1[l]/s0))
					info.SetSym(k, l, v)
				}
			}
		}

		i = j
	}

	return logLik, grad, info
}

// solveNewtonStep 求解 info * step = grad, 病态时加 ridge 重试
func solveNewtonStep(info *mat.SymDense, grad []float64) ([]float64, error) {
	p := len(grad)
	gradVec := mat.NewVecDense(p, grad)
	step := mat.NewVecDense(p, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		ridged := mat.NewSymDense(p, nil)
		ridged.CopySym(info)
		for j := 0; j < p; j++ {
			ridged.SetSym(j, j, ridged.At(j, j)+coxRidge)
		}
		if ok := chol.Factorize(ridged); !ok {
			return nil, fmt.Errorf("information matrix is not positive definite")
		}
	}
	if err := chol.SolveVecTo(step, gradVec); err != nil {
		return nil, err
	}

	out := make([]float64, p)
	for j := 0; j < p; j++ {
		out[j] = step.AtVec(j)
	}
	return out, nil
}

// standardErrors 信息矩阵逆的对角线开方
func standardErrors(info *mat.SymDense) ([]float64, error) {
	p, _ := info.Dims()

	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, fmt.Errorf("information matrix is not positive definite")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, err
	}

	se := make([]float64, p)
	for j := 0; j < p; j++ {
		v := inv.At(j, j)
		if v < 0 {
			return nil, fmt.Errorf("negative variance for coefficient %d", j)
		}
		se[j] = math.Sqrt(v)
	}
	return se, nil
}
