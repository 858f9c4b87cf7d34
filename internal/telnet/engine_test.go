package telnet_test

import (
	"bytes"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaracil/siomodem/internal/telnet"
)

type negotiation struct {
	option byte
	cmd    byte
}

type recorder struct {
	data       []byte
	sent       []byte
	negotiated []negotiation
	termType   string
}

func (r *recorder) OnData(p []byte) { r.data = append(r.data, p...) }
func (r *recorder) OnSend(p []byte) { r.sent = append(r.sent, p...) }
func (r *recorder) OnNegotiate(option, cmd byte) {
	r.negotiated = append(r.negotiated, negotiation{option, cmd})
}
func (r *recorder) OnTerminalTypeRequest() string { return r.termType }

var _ = Describe("Engine", func() {
	var (
		rec    *recorder
		engine *telnet.Engine
	)

	BeforeEach(func() {
		rec = &recorder{termType: "vt100"}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine = telnet.New(rec, telnet.DefaultPolicies, logger)
	})

	Context("Data", func() {
		It("passes plain bytes through", func() {
			engine.Recv([]byte("hello"))
			Expect(rec.data).To(Equal([]byte("hello")))
			Expect(rec.sent).To(BeEmpty())
		})

		It("unescapes doubled IAC", func() {
			engine.Recv([]byte{'a', telnet.IAC, telnet.IAC, 'b'})
			Expect(rec.data).To(Equal([]byte{'a', 0xFF, 'b'}))
		})

		It("escapes IAC on send", func() {
			engine.Send([]byte{'x', 0xFF, 'y'})
			Expect(rec.sent).To(Equal([]byte{'x', telnet.IAC, telnet.IAC, 'y'}))
		})

		It("strips single byte commands", func() {
			engine.Recv([]byte{'a', telnet.IAC, telnet.NOP, 'b', telnet.IAC, telnet.GA})
			Expect(rec.data).To(Equal([]byte("ab")))
		})
	})

	Context("Negotiation", func() {
		It("accepts WILL ECHO and reports it", func() {
			engine.Recv([]byte{telnet.IAC, telnet.WILL, telnet.Echo})
			Expect(rec.sent).To(Equal([]byte{telnet.IAC, telnet.DO, telnet.Echo}))
			Expect(rec.negotiated).To(Equal([]negotiation{{telnet.Echo, telnet.WILL}}))
			Expect(engine.IsRemoteOptionEnabled(telnet.Echo)).To(BeTrue())
		})

		It("fires events only on state change", func() {
			engine.Recv([]byte{telnet.IAC, telnet.WILL, telnet.Echo})
			engine.Recv([]byte{telnet.IAC, telnet.WILL, telnet.Echo})
			Expect(rec.negotiated).To(HaveLen(1))

			engine.Recv([]byte{telnet.IAC, telnet.WONT, telnet.Echo})
			engine.Recv([]byte{telnet.IAC, telnet.WONT, telnet.Echo})
			Expect(rec.negotiated).To(Equal([]negotiation{
				{telnet.Echo, telnet.WILL},
				{telnet.Echo, telnet.WONT},
			}))
		})

		It("refuses to echo locally", func() {
			engine.Recv([]byte{telnet.IAC, telnet.DO, telnet.Echo})
			Expect(rec.sent).To(Equal([]byte{telnet.IAC, telnet.WONT, telnet.Echo}))
			Expect(rec.negotiated).To(BeEmpty())
		})

		It("agrees to send the terminal type", func() {
			engine.Recv([]byte{telnet.IAC, telnet.DO, telnet.TType})
			Expect(rec.sent).To(Equal([]byte{telnet.IAC, telnet.WILL, telnet.TType}))
			Expect(engine.IsLocalOptionEnabled(telnet.TType)).To(BeTrue())
		})

		It("declines compression and MSSP", func() {
			engine.Recv([]byte{telnet.IAC, telnet.WILL, telnet.Compress2, telnet.IAC, telnet.WILL, telnet.MSSP})
			Expect(rec.sent).To(Equal([]byte{
				telnet.IAC, telnet.DONT, telnet.Compress2,
				telnet.IAC, telnet.DONT, telnet.MSSP,
			}))
			Expect(rec.negotiated).To(BeEmpty())
		})

		It("declines unknown options", func() {
			engine.Recv([]byte{telnet.IAC, telnet.DO, telnet.NAWS})
			Expect(rec.sent).To(Equal([]byte{telnet.IAC, telnet.WONT, telnet.NAWS}))
		})

		It("handles sequences split across calls", func() {
			engine.Recv([]byte{'a', telnet.IAC})
			engine.Recv([]byte{telnet.WILL})
			engine.Recv([]byte{telnet.Echo, 'b'})
			Expect(rec.data).To(Equal([]byte("ab")))
			Expect(rec.negotiated).To(Equal([]negotiation{{telnet.Echo, telnet.WILL}}))
		})
	})

	Context("Terminal type", func() {
		It("answers SB TTYPE SEND with the terminal name", func() {
			engine.Recv([]byte{telnet.IAC, telnet.SB, telnet.TType, telnet.SEND, telnet.IAC, telnet.SE})
			expected := append([]byte{telnet.IAC, telnet.SB, telnet.TType, telnet.IS}, []byte("vt100")...)
			expected = append(expected, telnet.IAC, telnet.SE)
			Expect(rec.sent).To(Equal(expected))
		})

		It("drops a sub-negotiation that never ends", func() {
			engine.Recv([]byte{telnet.IAC, telnet.SB, telnet.NAWS})
			engine.Recv(bytes.Repeat([]byte{'x'}, telnet.MaxSubnegotiation+1+43))
			engine.Recv([]byte("ok"))
			Expect(rec.sent).To(BeEmpty())
			Expect(rec.data).To(Equal(append(bytes.Repeat([]byte{'x'}, 43), "ok"...)))
		})

		It("ignores other sub-negotiations", func() {
			engine.Recv([]byte{telnet.IAC, telnet.SB, telnet.NAWS, 0, 80, 0, 24, telnet.IAC, telnet.SE, 'z'})
			Expect(rec.sent).To(BeEmpty())
			Expect(rec.data).To(Equal([]byte("z")))
		})
	})
})
