package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
)

// AccountToView renders an account for operators. Secret keys are masked.
func AccountToView(item *entity.Account) types.AccountView {
	view := types.AccountView{
		Title:      item.Title,
		Priority:   item.Priority,
		Live:       credentialsToView(item.Live),
		HasSandbox: item.HasSandbox,
	}
	if item.HasSandbox {
		sandbox := credentialsToView(item.Sandbox)
		view.Sandbox = &sandbox
	}
	return view
}

func AccountsToView(items []*entity.Account) []types.AccountView {
	out := make([]types.AccountView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, AccountToView(item))
	}
	return out
}

func SyncSummaryToResponse(summary *service.SyncSummary) *types.SyncAccountsResponse {
	resp := &types.SyncAccountsResponse{
		Message:   "Accounts synchronized successfully.",
		Timestamp: summary.Timestamp.UTC().Format(time.RFC3339),
		Statuses:  make([]types.AccountStatusView, 0, len(summary.Statuses)),
	}
	for _, item := range summary.Statuses {
		resp.Statuses = append(resp.Statuses, types.AccountStatusView{
			Title:  item.Title,
			Mode:   string(item.Mode),
			Status: string(item.Status),
		})
	}
	return resp
}

func credentialsToView(creds entity.Credentials) types.CredentialsView {
	return types.CredentialsView{
		PublicKey: creds.PublicKey,
		SecretKey: types.MaskKey(creds.SecretKey),
		Status:    statusString(creds.Status),
	}
}

func statusString(status entity.AccountStatus) string {
	if status == "" {
		return string(entity.AccountStatusUnknown)
	}
	return string(status)
}
