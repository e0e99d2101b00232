package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	err = New(ErrSerialPortOpen, "/dev/serial0", "permission denied")
	suite.Equal("/dev/serial0; permission denied", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "key %d out of range", 9)
	suite.Equal("key 9 out of range", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("input/output error")
	wrappedErr := Wrap(originalErr, ErrSerialPortWrite)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrSerialPortWrite, wrappedErr.Code)
	suite.Equal("input/output error", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 已有AppError保留原始错误码
	appErr := New(ErrDeviceOffline, "link closed")
	wrappedAppErr := Wrap(appErr, ErrSerialPortWrite, "KEY 1 1000")
	suite.Equal(ErrDeviceOffline, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "KEY 1 1000")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("no such file or directory")
	wrappedErr := Wrapf(originalErr, ErrSerialPortOpen, "open %s", "/dev/serial0")
	suite.Equal("open /dev/serial0", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断，包括fmt包装后的错误链
func (suite *ErrorsTestSuite) TestIsAndGetCode() {
	err := New(ErrSerialPortRead)
	suite.True(Is(err, ErrSerialPortRead))
	suite.False(Is(err, ErrSerialPortWrite))
	suite.False(Is(nil, ErrSerialPortRead))

	chained := fmt.Errorf("tick: %w", err)
	suite.True(Is(chained, ErrSerialPortRead))
	suite.Equal(ErrSerialPortRead, GetCode(chained))

	suite.Equal(ErrUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "key 8"
	suite.Equal("[1002] 资源未找到: key 8", err.Error())
}

func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("broken pipe")
	err := New(ErrSerialPortWrite).WithCause(cause)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("broken pipe", err.Details)

	err2 := New(ErrSerialPortWrite, "DISP 1").WithCause(cause)
	suite.Equal("DISP 1", err2.Details)
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 404},
		{ErrTimeout, 408},
		{ErrDeviceBusy, 429},
		{ErrDeviceOffline, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		suite.Equal(tc.expected, New(tc.code).HTTPStatus(), "错误码 %d", tc.code)
	}
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrSerialPortOpen, ErrSerialPortWrite, ErrSerialPortRead, ErrDeviceOffline, ErrMQTTConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrConfigValidate} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestIsCritical() {
	suite.True(IsCritical(New(ErrDeviceNotFound)))
	suite.True(IsCritical(New(ErrConfigLoad)))
	suite.False(IsCritical(New(ErrSerialPortWrite)))
	suite.False(IsCritical(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrInvalidParam, "key 8")
	response := NewErrorResponse(err, "req-1")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-1", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
