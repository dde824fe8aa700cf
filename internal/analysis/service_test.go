package analysis

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/bayerngomez/retouchlab/internal/gemini"
	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	calls    int
	lastReq  gemini.Request
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	text := f.response
	if text == "" {
		text = fmt.Sprintf("critique #%d", f.calls)
	}
	return &gemini.Response{Text: text, Model: req.Model}, nil
}

func newTestService(t *testing.T, completer gemini.Completer) (*Service, *quota.Ledger) {
	t.Helper()
	ledger, err := quota.Open(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	return NewService(completer, ledger, nil, Modes("gemini-1.5-flash", "gemini-1.5-pro")), ledger
}

func guestSession(phone string) *session.Session {
	return session.New("sess-"+phone, phone, session.RoleGuest, time.Now().Add(time.Hour))
}

func vipSession(phone string) *session.Session {
	return session.New("vip-"+phone, phone, session.RoleVIP, time.Now().Add(time.Hour))
}

func testJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResolveMode(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{})

	daily, err := svc.ResolveMode("daily")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", daily.ModelID)
	assert.Contains(t, daily.Instruction, "修图大师 BayernGomez")

	pro, err := svc.ResolveMode("pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", pro.ModelID)
	assert.NotEqual(t, daily.Instruction, pro.Instruction)

	_, err = svc.ResolveMode("turbo")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestAnalyzeRequiresImage(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{})
	sess := guestSession("13800000000")

	_, err := svc.Analyze(context.Background(), sess, "daily", "")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestAnalyzePromptConstruction(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")
	sess.SetImage(session.ImageUploaded, testJPEG(t, 100))

	_, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	assert.Equal(t, "请分析这张图片。", completer.lastReq.Prompt)
	assert.InDelta(t, 0.1, completer.lastReq.Temperature, 0.001)
	assert.Equal(t, "image/jpeg", completer.lastReq.ImageMIME)

	sess.SetImage(session.ImageUploaded, testJPEG(t, 120))
	_, err = svc.Analyze(context.Background(), sess, "daily", "日系小清新")
	require.NoError(t, err)
	assert.Equal(t, "请分析这张图片。 用户需求：日系小清新", completer.lastReq.Prompt)
}

func TestGuestQuotaConsumedPerAnalysis(t *testing.T) {
	completer := &fakeCompleter{}
	svc, ledger := newTestService(t, completer)
	phone := "13800000000"
	sess := guestSession(phone)

	// Walk the guest to the edge of the total ceiling on distinct images.
	for i := 0; i < quota.MaxTotal-1; i++ {
		sess.SetImage(session.ImageUploaded, []byte(fmt.Sprintf("image-%d", i)))
		_, err := svc.Analyze(context.Background(), sess, "daily", "")
		require.NoError(t, err)
	}
	rec, err := ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, quota.MaxTotal-1, rec.Total)

	// One more succeeds and exactly reaches the ceiling.
	sess.SetImage(session.ImageUploaded, []byte("image-final"))
	_, err = svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	rec, err = ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, quota.MaxTotal, rec.Total)

	// A new image past the ceiling fails and makes no upstream call.
	callsBefore := completer.calls
	sess.SetImage(session.ImageUploaded, []byte("image-over"))
	_, err = svc.Analyze(context.Background(), sess, "daily", "")
	assert.ErrorIs(t, err, quota.ErrTotalExhausted)
	assert.Equal(t, callsBefore, completer.calls)
}

func TestGuestReplayIsFreeAndIdentical(t *testing.T) {
	completer := &fakeCompleter{}
	svc, ledger := newTestService(t, completer)
	phone := "13800000000"
	sess := guestSession(phone)
	sess.SetImage(session.ImageUploaded, testJPEG(t, 50))

	first, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)

	// Re-clicking analyze on the unchanged image replays the cached record
	// without a second charge or upstream call.
	second, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, completer.calls)

	rec, err := ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Total)

	// A different image is a fresh charge.
	sess.SetImage(session.ImageUploaded, testJPEG(t, 200))
	third, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	rec, err = ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Total)
}

func TestVIPAlwaysReanalyzes(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")
	sess.SetImage(session.ImageUploaded, testJPEG(t, 50))

	_, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	_, err = svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls)
}

func TestProTrialScenario(t *testing.T) {
	completer := &fakeCompleter{}
	svc, ledger := newTestService(t, completer)
	phone := "13800000000"
	sess := guestSession(phone)

	// Image A in pro mode succeeds and consumes the single pro use.
	sess.SetImage(session.ImageUploaded, []byte("image-a"))
	_, err := svc.Analyze(context.Background(), sess, "pro", "")
	require.NoError(t, err)
	rec, err := ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, quota.Record{Total: 1, Pro: 1}, rec)

	// Image B in pro mode fails even though total uses remain.
	sess.SetImage(session.ImageUploaded, []byte("image-b"))
	_, err = svc.Analyze(context.Background(), sess, "pro", "")
	assert.ErrorIs(t, err, quota.ErrProExhausted)
	rec, err = ledger.Peek(phone)
	require.NoError(t, err)
	assert.True(t, rec.Total < quota.MaxTotal)

	// Daily mode still works on image B.
	_, err = svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
}

func TestQuotaNotRefundedOnUpstreamFailure(t *testing.T) {
	completer := &fakeCompleter{err: gemini.ErrQuotaExhausted}
	svc, ledger := newTestService(t, completer)
	phone := "13800000000"
	sess := guestSession(phone)
	sess.SetImage(session.ImageUploaded, []byte("image-a"))

	_, err := svc.Analyze(context.Background(), sess, "daily", "")
	assert.ErrorIs(t, err, gemini.ErrQuotaExhausted)

	// The trial use is gone even though no report was produced,
	// and no report got cached.
	rec, err := ledger.Peek(phone)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Total)
	rep, _ := sess.Report()
	assert.Nil(t, rep)
}

func TestFailedAnalysisKeepsPriorReport(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")
	sess.SetImage(session.ImageUploaded, testJPEG(t, 50))

	first, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)

	completer.err = &gemini.UpstreamError{Message: "boom"}
	sess.SetImage(session.ImageUploaded, testJPEG(t, 200))
	_, err = svc.Analyze(context.Background(), sess, "daily", "")
	require.Error(t, err)

	rep, _ := sess.Report()
	assert.Same(t, first, rep)
}

func TestHistoryAfterManyAnalyses(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")

	var last *session.Record
	for i := 0; i < 8; i++ {
		sess.SetImage(session.ImageUploaded, []byte(fmt.Sprintf("image-%d", i)))
		rec, err := svc.Analyze(context.Background(), sess, "daily", "")
		require.NoError(t, err)
		last = rec
	}

	history := sess.History()
	require.Len(t, history, session.HistoryLimit)
	assert.Equal(t, last.ReportText, history[len(history)-1].ReportText)
}

func TestRecordCarriesThumbnail(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")
	sess.SetImage(session.ImageUploaded, testJPEG(t, 80))

	rec, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)
	assert.Equal(t, "daily", rec.Mode)
	assert.NotEmpty(t, rec.Thumbnail)
	assert.WithinDuration(t, time.Now(), rec.Timestamp, time.Minute)
}

func TestFavoriteCopiesFromHistory(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer)
	sess := vipSession("13900000000")
	sess.SetImage(session.ImageUploaded, testJPEG(t, 80))

	rec, err := svc.Analyze(context.Background(), sess, "daily", "")
	require.NoError(t, err)

	fav, err := svc.Favorite(sess, rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, fav)
	assert.Len(t, sess.Favorites(), 1)

	_, err = svc.Favorite(sess, "missing")
	assert.Error(t, err)
}
