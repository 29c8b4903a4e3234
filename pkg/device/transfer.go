// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"fmt"
	"math"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
)

func (s *Session) progress(dir Direction, kind records.Command, done, total int) {
	if s.opts.progress != nil {
		s.opts.progress(Progress{Direction: dir, Kind: kind, Done: done, Total: total})
	}
}

// command sends a device command and waits for its ack
func (s *Session) command(cmd records.Command) error {
	payload := records.Marshal(records.CommandRecord{Command: cmd})
	if err := s.link.SendAndWait(link.PidCommand, payload, s.opts.timeouts.Ack); err != nil {
		return classify(err)
	}
	return nil
}

// Download issues cmd and receives the transfer it starts. Every record is
// passed to consumer as it arrives; consumer may be nil. The list built on
// the way is returned even when the download fails part way.
func (s *Session) Download(ctx context.Context, cmd records.Command, consumer Consumer) (*records.TransferList, error) {
	if err := s.begin("download", StateCommanding); err != nil {
		return nil, err
	}
	defer s.finish()

	if consumer == nil {
		consumer = ConsumerFuncs{}
	}

	list, err := s.download(ctx, cmd, consumer)
	if err != nil {
		if s.log != nil {
			s.log.Error().
				Str("session", s.id.String()).
				Str("kind", cmd.String()).
				Int("received", list.Len()).
				Err(err).
				Msg("download failed")
		}
		return list, opError("download "+cmd.String(), err)
	}
	return list, nil
}

func (s *Session) download(ctx context.Context, cmd records.Command, consumer Consumer) (*records.TransferList, error) {
	list := records.NewTransferList(cmd)
	codec := s.Codec()

	if s.log != nil {
		s.log.Debug().Str("session", s.id.String()).Str("command", cmd.String()).Msg("send command")
	}
	if err := s.command(cmd); err != nil {
		return list, err
	}
	s.setState(StateDownloading)

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return list, err
		}

		frame, err := s.link.Receive(s.opts.timeouts.Receive)
		if err != nil {
			id, ok := corruptFrame(err)
			if !ok {
				return list, classify(err)
			}
			failures++
			s.nak(id)
			if failures >= MaxChecksumFailures {
				return list, fmt.Errorf("%w: %d consecutive corrupt frames: %w", ErrTransportFailure, failures, err)
			}
			continue
		}
		failures = 0

		// Ack everything, understood or not, so the unit moves on
		if err := s.link.SendAck(frame.ID); err != nil {
			return list, classify(err)
		}

		switch frame.ID {
		case link.PidAck, link.PidNak, link.PidCapabilities, link.PidProductResponse:
			if s.log != nil {
				s.log.Debug().Str("session", s.id.String()).Str("packet", link.PacketName(frame.ID)).Msg("ignored frame during download")
			}
			continue

		case link.PidTransferBegin:
			rec, _ := codec.Decode(frame.ID, frame.Payload)
			list.Expected = int(rec.(records.TransferBegin).Count)
			if s.log != nil {
				s.log.Debug().Str("session", s.id.String()).Str("kind", cmd.String()).Int("count", list.Expected).Msg("transfer begin")
			}
			consumer.TransferBegin(cmd, list.Expected)
			continue

		case link.PidTransferEnd:
			rec, _ := codec.Decode(frame.ID, frame.Payload)
			list.EndTag = rec.(records.TransferEnd).Command
			s.endTransfer(list, consumer)
			return list, nil
		}

		rec, err := codec.Decode(frame.ID, frame.Payload)
		if err != nil && s.log != nil {
			s.log.Warn().
				Str("session", s.id.String()).
				Str("packet", link.PacketName(frame.ID)).
				Int("length", len(frame.Payload)).
				Err(err).
				Msg("record kept as raw bytes")
		}

		item := records.Item{ID: frame.ID, Record: rec}
		list.Items = append(list.Items, item)
		consumer.Record(item)
		s.progress(DirectionDownload, cmd, list.Len(), list.Expected)

		// The time record has no transfer end
		if frame.ID == link.PidUTCData {
			s.endTransfer(list, consumer)
			return list, nil
		}
	}
}

func (s *Session) endTransfer(list *records.TransferList, consumer Consumer) {
	list.Complete = true
	if list.CountMismatch() && s.log != nil {
		s.log.Warn().
			Str("session", s.id.String()).
			Str("kind", list.Kind.String()).
			Int("received", list.Len()).
			Int("expected", list.Expected).
			Msg("record count differs from transfer begin")
	}
	consumer.TransferEnd(list.Len(), list.Expected)
}

// DownloadTime requests the device date and time
func (s *Session) DownloadTime(ctx context.Context) (records.UTCTime, error) {
	list, err := s.Download(ctx, records.CmdTransferTime, nil)
	if err != nil {
		return records.UTCTime{}, err
	}
	for _, item := range list.Items {
		if t, ok := item.Record.(records.UTCTime); ok {
			return t, nil
		}
	}
	return records.UTCTime{}, opError("download time", ErrNoResponse)
}

// Abort tells the device to stop a transfer it is sending
func (s *Session) Abort(ctx context.Context) error {
	if err := s.begin("abort", StateCommanding); err != nil {
		return err
	}
	defer s.finish()

	if err := ctx.Err(); err != nil {
		return opError("abort", err)
	}
	return opError("abort", s.command(records.CmdAbortTransfer))
}

// Upload sends transfer lists in order. Each list is encoded for the
// device's layouts before anything is sent. When a record cannot be
// delivered the transfer is aborted and a *TransferError returned; later
// lists are not attempted.
func (s *Session) Upload(ctx context.Context, lists ...*records.TransferList) error {
	if err := s.begin("upload", StateUploading); err != nil {
		return err
	}
	defer s.finish()

	codec := s.Codec()
	for _, l := range lists {
		if err := s.uploadList(ctx, codec, l); err != nil {
			if s.log != nil {
				s.log.Error().Str("session", s.id.String()).Str("kind", l.Kind.String()).Err(err).Msg("upload failed")
			}
			return err
		}
	}
	return nil
}

func (s *Session) uploadList(ctx context.Context, codec *records.Codec, l *records.TransferList) error {
	if l.Len() > math.MaxUint16 {
		return opError("upload "+l.Kind.String(), fmt.Errorf("%w: %d records", ErrListTooLong, l.Len()))
	}

	payloads := make([][]byte, len(l.Items))
	for i, item := range l.Items {
		p, err := codec.Encode(item.ID, item.Record)
		if err != nil {
			return opError("upload "+l.Kind.String(), fmt.Errorf("record %d: %w", i+1, err))
		}
		payloads[i] = p
	}

	if err := ctx.Err(); err != nil {
		return opError("upload "+l.Kind.String(), err)
	}

	if s.log != nil {
		s.log.Debug().Str("session", s.id.String()).Str("kind", l.Kind.String()).Int("count", len(payloads)).Msg("transfer begin")
	}
	begin := records.Marshal(records.TransferBegin{Count: uint16(len(payloads))})
	if err := s.link.SendAndWait(link.PidTransferBegin, begin, s.opts.timeouts.Ack); err != nil {
		return opError("upload "+l.Kind.String(), classify(err))
	}

	for i, p := range payloads {
		err := ctx.Err()
		if err == nil {
			err = s.link.SendAndWait(l.Items[i].ID, p, s.opts.timeouts.Ack)
		}
		if err != nil {
			s.abortTransfer()
			return &TransferError{Kind: l.Kind, Index: i, Sent: i, Err: classify(err)}
		}
		s.progress(DirectionUpload, l.Kind, i+1, len(payloads))
	}

	end := records.Marshal(records.TransferEnd{Command: l.Kind})
	if err := s.link.SendAndWait(link.PidTransferEnd, end, s.opts.timeouts.Ack); err != nil {
		return opError("upload "+l.Kind.String(), classify(err))
	}
	return nil
}

// abortTransfer ends an upload early. It is best effort; a failure is
// only logged.
func (s *Session) abortTransfer() {
	payload := records.Marshal(records.TransferEnd{Command: records.CmdAbortTransfer})
	err := s.link.SendAndWait(link.PidTransferEnd, payload, s.opts.timeouts.Ack)
	if s.log != nil {
		if err != nil {
			s.log.Warn().Str("session", s.id.String()).Err(err).Msg("transfer abort not acknowledged")
		} else {
			s.log.Debug().Str("session", s.id.String()).Msg("transfer aborted")
		}
	}
}
