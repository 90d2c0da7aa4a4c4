package insight

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/glimpsehq/glimpse/api/schemas"
)

type mockRetriever struct{ mock.Mock }

func (m *mockRetriever) Retrieve(ctx context.Context, kind schemas.ActionKind) (*schemas.UIContext, error) {
	args := m.Called(ctx, kind)
	if c := args.Get(0); c != nil {
		return c.(*schemas.UIContext), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSectionLocator struct{ mock.Mock }

func (m *mockSectionLocator) LocateSection(ctx context.Context, uiCtx *schemas.UIContext, prompt string, profile schemas.ModelProfile) (*schemas.SectionLocateResponse, error) {
	args := m.Called(ctx, uiCtx, prompt, profile)
	if r := args.Get(0); r != nil {
		return r.(*schemas.SectionLocateResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockElementLocator struct{ mock.Mock }

func (m *mockElementLocator) LocateElement(ctx context.Context, uiCtx *schemas.UIContext, call schemas.ElementLocateCall) (*schemas.ElementLocateResponse, error) {
	args := m.Called(ctx, uiCtx, call)
	if r := args.Get(0); r != nil {
		return r.(*schemas.ElementLocateResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExtractCaller struct{ mock.Mock }

func (m *mockExtractCaller) CallExtract(ctx context.Context, uiCtx *schemas.UIContext, demand schemas.ExtractDemand) (*schemas.ExtractResponse, error) {
	args := m.Called(ctx, uiCtx, demand)
	if r := args.Get(0); r != nil {
		return r.(*schemas.ExtractResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAssertCaller struct{ mock.Mock }

func (m *mockAssertCaller) CallAssert(ctx context.Context, uiCtx *schemas.UIContext, assertion string) (*schemas.AssertResponse, error) {
	args := m.Called(ctx, uiCtx, assertion)
	if r := args.Get(0); r != nil {
		return r.(*schemas.AssertResponse), args.Error(1)
	}
	return nil, args.Error(1)
}
