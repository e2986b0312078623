// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// -- Driver Mock --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) FindElements(ctx context.Context, xpath string) ([]driver.Element, error) {
	args := m.Called(ctx, xpath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]driver.Element), args.Error(1)
}

func (m *MockDriver) ScrollIntoView(ctx context.Context, el driver.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockDriver) MoveTo(ctx context.Context, el driver.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) ClosePage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) WindowHandle(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) WindowHandles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDriver) SwitchToWindow(ctx context.Context, handle string) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDriver) SetImplicitWait(ctx context.Context, d time.Duration) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDriver) Close() error {
	return m.Called().Error(0)
}

// -- Element Mock --

// MockElement mocks driver.Element. ID is not recorded as a call.
type MockElement struct {
	mock.Mock
	Name string
}

var _ driver.Element = (*MockElement)(nil)

func (m *MockElement) ID() string { return m.Name }

func (m *MockElement) Displayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Enabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Selected(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Attribute(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Click(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) SendKeys(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}
