package broker

import "context"

// DryRun wraps a terminal and refuses every order, so a cycle can run against
// live data without touching the venue.
type DryRun struct {
	Terminal
}

func (d DryRun) SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	return OrderResult{
		Retcode: RetcodeRejected,
		Comment: "dry run",
		Volume:  req.Volume,
		Price:   req.Price,
	}, nil
}
