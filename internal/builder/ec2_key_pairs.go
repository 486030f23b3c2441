package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

var (
	ErrKeypairImport = fmt.Errorf("failed to import keypair")
	ErrKeypairDelete = fmt.Errorf("failed to delete keypair")
)

func keypairImport(ctx context.Context, client API, keyName string, pubKey []byte) error {
	_, err := client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(keyName),
		PublicKeyMaterial: pubKey,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeypairImport, err)
	}
	return nil
}

func keypairDelete(ctx context.Context, client API, keyName string) error {
	_, err := client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(keyName),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeypairDelete, err)
	}
	return nil
}
