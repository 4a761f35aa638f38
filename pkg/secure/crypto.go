package secure

import (
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"fmt"
	"io"
)

// chunkSize is the size of one bulk transfer during download.
const chunkSize = 0x80000

// packetHeaderSize is the length, key and IV sent in front of the first
// chunk.
const packetHeaderSize = 24

// RetailMAC derives the session key from the EKB root key and the nonces
// exchanged with the device.
func RetailMAC(rootKey [16]byte, hostNonce, devNonce [8]byte) ([8]byte, error) {
	var session [8]byte

	single, err := des.NewCipher(rootKey[:8])
	if err != nil {
		return session, err
	}
	iv := make([]byte, 8)
	single.Encrypt(iv, hostNonce[:])

	key := make([]byte, 0, 24)
	key = append(key, rootKey[:]...)
	key = append(key, rootKey[:8]...)
	triple, err := des.NewTripleDESCipher(key)
	if err != nil {
		return session, err
	}
	cipher.NewCBCEncrypter(triple, iv).CryptBlocks(session[:], devNonce[:])
	return session, nil
}

// desCBC encrypts or decrypts data with a zero IV.
func desCBC(key [8]byte, data []byte, encrypt bool) ([]byte, error) {
	if len(data)%des.BlockSize != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of blocks", len(data))
	}
	block, err := des.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	iv := make([]byte, des.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

// Packets is an encrypted track payload split into bulk transfers.
type Packets struct {
	// Key is the random key as sent to the device. The data is encrypted
	// with its decryption under the KEK.
	Key [8]byte
	// IV is the initial vector of the CBC stream spanning all chunks.
	IV     [8]byte
	Chunks [][]byte
	// Length is the total size of all chunks.
	Length int
}

// Packetize pads data to a whole number of frames and encrypts it. It
// returns the packets and the frame count.
func Packetize(data []byte, frameSize int, kek [8]byte, rand io.Reader) (*Packets, int, error) {
	if frameSize <= 0 || frameSize%des.BlockSize != 0 {
		return nil, 0, fmt.Errorf("invalid frame size %d", frameSize)
	}
	p := &Packets{}
	if _, err := io.ReadFull(rand, p.Key[:]); err != nil {
		return nil, 0, fmt.Errorf("generating key: %w", err)
	}
	if _, err := io.ReadFull(rand, p.IV[:]); err != nil {
		return nil, 0, fmt.Errorf("generating IV: %w", err)
	}

	kekCipher, err := des.NewCipher(kek[:])
	if err != nil {
		return nil, 0, err
	}
	key := make([]byte, 8)
	kekCipher.Decrypt(key, p.Key[:])
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, 0, err
	}

	padded := len(data)
	if rem := padded % frameSize; rem != 0 {
		padded += frameSize - rem
	}
	plain := make([]byte, padded)
	copy(plain, data)

	// One encrypter carries the CBC chain from chunk to chunk.
	enc := cipher.NewCBCEncrypter(block, p.IV[:])
	for pos := 0; pos < len(plain); {
		size := chunkSize
		if pos == 0 {
			size -= packetHeaderSize
		}
		size = min(size, len(plain)-pos)
		chunk := make([]byte, size)
		enc.CryptBlocks(chunk, plain[pos:pos+size])
		p.Chunks = append(p.Chunks, chunk)
		pos += size
	}
	p.Length = padded
	return p, padded / frameSize, nil
}

// Header is sent in front of the first chunk.
func (p *Packets) Header() []byte {
	h := binary.BigEndian.AppendUint64(make([]byte, 0, packetHeaderSize), uint64(p.Length))
	h = append(h, p.Key[:]...)
	return append(h, p.IV[:]...)
}

// Transfers returns the buffers to send over the bulk endpoint, in order.
func (p *Packets) Transfers() [][]byte {
	if len(p.Chunks) == 0 {
		return [][]byte{p.Header()}
	}
	res := make([][]byte, len(p.Chunks))
	res[0] = append(p.Header(), p.Chunks[0]...)
	copy(res[1:], p.Chunks[1:])
	return res
}
