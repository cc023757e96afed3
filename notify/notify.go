// Package notify publishes what the node commits to a message broker.
//
// Every committed block produces one message on the block topic and, if
// objects changed, one message on the change topic carrying the new,
// changed and removed object ids together with the accounts they
// impact. Payloads are cramberry encoded; the height and block id are
// also set as message metadata so consumers can route without decoding.
package notify

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

const (
	DefaultBlockTopic  = "ledger.blocks"
	DefaultChangeTopic = "ledger.changes"

	MetadataHeight  = "height"
	MetadataBlockID = "block_id"
)

type Options struct {
	Logger      zerolog.Logger
	BlockTopic  string
	ChangeTopic string
}

// BlockNotice announces a committed block.
type BlockNotice struct {
	Height       uint64            `cramberry:"1"`
	BlockID      types.BlockID     `cramberry:"2"`
	Timestamp    types.TimePoint   `cramberry:"3"`
	Witness      types.WitnessID   `cramberry:"4"`
	AppHash      types.AppHash     `cramberry:"5"`
	Transactions []types.TxOutcome `cramberry:"6"`
	Events       []types.Event     `cramberry:"7"`
}

// ChangeNotice lists the objects a committed block touched.
type ChangeNotice struct {
	Height   uint64            `cramberry:"1"`
	New      []types.ObjectID  `cramberry:"2"`
	Changed  []types.ObjectID  `cramberry:"3"`
	Removed  []types.ObjectID  `cramberry:"4"`
	Impacted []types.AccountID `cramberry:"5"`
}

// Publisher sends notices through a watermill publisher.
type Publisher struct {
	pub    message.Publisher
	logger zerolog.Logger
	blocks string
	change string
}

// New publishes through pub, which the Publisher takes ownership of.
func New(pub message.Publisher, opts Options) *Publisher {
	if opts.BlockTopic == "" {
		opts.BlockTopic = DefaultBlockTopic
	}
	if opts.ChangeTopic == "" {
		opts.ChangeTopic = DefaultChangeTopic
	}
	return &Publisher{
		pub:    pub,
		logger: opts.Logger,
		blocks: opts.BlockTopic,
		change: opts.ChangeTopic,
	}
}

// NewRedis publishes to Redis streams named after the topics.
func NewRedis(client redis.UniversalClient, opts Options) (*Publisher, error) {
	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		NewLogger(opts.Logger),
	)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("redis publisher: %w", err)
	}
	return New(pub, opts), nil
}

// PublishBlock announces b with its outcome.
func (p *Publisher) PublishBlock(ctx context.Context, b *types.SignedBlock, out types.BlockOutcome) error {
	notice := BlockNotice{
		Height:       uint64(b.Num()),
		BlockID:      out.BlockID,
		Timestamp:    b.Header.Timestamp,
		Witness:      b.Header.Witness,
		AppHash:      out.AppHash,
		Transactions: out.TxOutcomes,
		Events:       out.BlockEvents,
	}
	return p.publish(ctx, p.blocks, notice.Height, out.BlockID, &notice)
}

// PublishChanges announces the objects touched at height. Empty change
// sets are not published.
func (p *Publisher) PublishChanges(ctx context.Context, height uint64, id types.BlockID, ch store.Changes) error {
	if ch.Empty() {
		return nil
	}
	notice := ChangeNotice{
		Height:   height,
		New:      ch.New,
		Changed:  ch.Changed,
		Impacted: ch.Impacted,
	}
	for _, obj := range ch.Removed {
		notice.Removed = append(notice.Removed, obj.GetID())
	}
	return p.publish(ctx, p.change, height, id, &notice)
}

func (p *Publisher) publish(ctx context.Context, topic string, height uint64, id types.BlockID, v any) error {
	payload, err := cramberry.Marshal(v)
	if err != nil {
		return errors.Internal.WithFormat("encode notice: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataHeight, strconv.FormatUint(height, 10))
	msg.Metadata.Set(MetadataBlockID, id.String())

	if err := p.pub.Publish(topic, msg); err != nil {
		published.WithLabelValues(topic, "error").Inc()
		p.logger.Error().Err(err).Str("topic", topic).Uint64("height", height).Str("msg_uuid", msg.UUID).Msg("Publish failed")
		return errors.Internal.WithFormat("publish to %s: %w", topic, err)
	}
	published.WithLabelValues(topic, "ok").Inc()
	p.logger.Debug().Str("topic", topic).Uint64("height", height).Str("msg_uuid", msg.UUID).Msg("Published")
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.pub.Close()
}

// DecodeBlockNotice decodes the payload of a block topic message.
func DecodeBlockNotice(msg *message.Message) (BlockNotice, error) {
	var n BlockNotice
	if err := cramberry.Unmarshal(msg.Payload, &n); err != nil {
		return n, errors.BadRequest.WithFormat("decode block notice: %w", err)
	}
	return n, nil
}

// DecodeChangeNotice decodes the payload of a change topic message.
func DecodeChangeNotice(msg *message.Message) (ChangeNotice, error) {
	var n ChangeNotice
	if err := cramberry.Unmarshal(msg.Payload, &n); err != nil {
		return n, errors.BadRequest.WithFormat("decode change notice: %w", err)
	}
	return n, nil
}
