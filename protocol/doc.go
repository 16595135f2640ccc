package protocol

// This package implements the framing layer that Parley uses to move
// messages between clients and servers, in either direction.
//
// Every message on the wire is a single frame
//
//   ```
//     <header><body>
//   ```
//
// where `<header>` is exactly 4 bytes of ASCII decimal, left-padded with
// spaces, holding the length of `<body>` in bytes. `<body>` is 0..512 raw
// bytes with no terminator.
//
// For example the frame carrying the 5 byte body `hello` is
//
//   ```
//     "   5hello"
//   ```
//
// There is no opcode or message type at this layer. Whatever structure the
// body has (command prefixes such as `#name` or `#msg`) belongs entirely to
// the application sitting on top of the transport.
//
// The framing layer makes two promises and no more
//
// - a frame handed to a connection is delivered whole, in FIFO order
//   relative to other frames on that same connection
// - a received frame is handed to the application whole, in wire order
//
// There is no ordering relationship between frames sent on different
// connections.
//
// === Oversized bodies
//
// Bodies longer than MaxBodyLength are truncated at encode time and the
// caller is told about it (ErrBodyTruncated). The header always describes
// the bytes that actually follow it; an encoded frame never lies about its
// own length.
//
// A received header that claims more than MaxBodyLength is clamped. The
// following body read is bounded to MaxBodyLength, which can desynchronize
// the stream if the peer really did send more. That is an accepted
// limitation of the format rather than a recoverable condition.
